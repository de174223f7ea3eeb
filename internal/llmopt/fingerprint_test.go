package llmopt

import "testing"

func TestFingerprintStableForIdenticalRequests(t *testing.T) {
	a := Request{Kind: KindToolPlanning, Model: "gpt-4o", Messages: []Message{{Role: "user", Content: "hi"}}, Parameters: map[string]any{"temperature": 0.2}}
	b := Request{Kind: KindToolPlanning, Model: "gpt-4o", Messages: []Message{{Role: "user", Content: "hi"}}, Parameters: map[string]any{"temperature": 0.2}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("expected identical requests to fingerprint identically")
	}
}

func TestFingerprintParameterOrderIndependent(t *testing.T) {
	a := Request{Kind: KindGeneral, Model: "m", Parameters: map[string]any{"a": 1, "b": 2}}
	b := Request{Kind: KindGeneral, Model: "m", Parameters: map[string]any{"b": 2, "a": 1}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("expected parameter key order not to affect the fingerprint")
	}
}

func TestFingerprintDiffersOnModel(t *testing.T) {
	a := Request{Kind: KindGeneral, Model: "gpt-4o"}
	b := Request{Kind: KindGeneral, Model: "gpt-4o-mini"}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("expected different models to fingerprint differently")
	}
}

func TestFingerprintDiffersOnMessageContent(t *testing.T) {
	a := Request{Kind: KindGeneral, Messages: []Message{{Role: "user", Content: "one"}}}
	b := Request{Kind: KindGeneral, Messages: []Message{{Role: "user", Content: "two"}}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("expected different message content to fingerprint differently")
	}
}
