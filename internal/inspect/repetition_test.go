package inspect

import (
	"testing"

	"github.com/relaycore/orchestrator/internal/validate"
)

func TestRepetitionInspectorAllowsFirstFewCalls(t *testing.T) {
	r := NewRepetitionInspector(20, 3, false)
	for i := 0; i < 2; i++ {
		calls := []validate.ToolCall{{Provider: "filesystem", Tool: "filesystem__list_directory", Parameters: map[string]any{"path": "/a"}}}
		if got := r.Inspect(calls); got != nil {
			t.Fatalf("expected call %d to be approved, got %v", i, got)
		}
	}
}

func TestRepetitionInspectorFlagsAtThreshold(t *testing.T) {
	r := NewRepetitionInspector(20, 3, false)
	var last []CallVerdict
	for i := 0; i < 3; i++ {
		calls := []validate.ToolCall{{Provider: "filesystem", Tool: "filesystem__list_directory", Parameters: map[string]any{"path": "/a", "n": i}}}
		last = r.Inspect(calls)
	}
	if len(last) != 1 || last[0].Verdict != RequiresApproval {
		t.Fatalf("expected requires_approval at threshold, got %v", last)
	}
}

func TestRepetitionInspectorStrictDenies(t *testing.T) {
	r := NewRepetitionInspector(20, 3, true)
	var last []CallVerdict
	for i := 0; i < 3; i++ {
		calls := []validate.ToolCall{{Provider: "filesystem", Tool: "filesystem__list_directory", Parameters: map[string]any{"n": i}}}
		last = r.Inspect(calls)
	}
	if len(last) != 1 || last[0].Verdict != Denied {
		t.Fatalf("expected denied in strict mode at threshold, got %v", last)
	}
}

func TestRepetitionInspectorExactMatchFlagsImmediately(t *testing.T) {
	r := NewRepetitionInspector(20, 10, false)
	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "filesystem__read_file", Parameters: map[string]any{"path": "/a"}}}
	r.Inspect(calls)
	got := r.Inspect(calls)
	if len(got) != 1 || got[0].Verdict != RequiresApproval {
		t.Fatalf("expected exact repeat to be flagged even below the name-count threshold, got %v", got)
	}
}

func TestRepetitionInspectorWindowEviction(t *testing.T) {
	r := NewRepetitionInspector(2, 3, false)
	for i := 0; i < 5; i++ {
		calls := []validate.ToolCall{{Provider: "filesystem", Tool: "filesystem__list_directory", Parameters: map[string]any{"n": i}}}
		r.Inspect(calls)
	}
	if len(r.window) != 2 {
		t.Errorf("expected window capped at size 2, got %d entries", len(r.window))
	}
}

func TestDefaultRepetitionThresholds(t *testing.T) {
	r := NewRepetitionInspector(0, 0, false)
	if r.windowSize != 20 || r.maxConsecutiveRepetitions != 3 {
		t.Errorf("expected defaults window=20 max=3, got window=%d max=%d", r.windowSize, r.maxConsecutiveRepetitions)
	}
}
