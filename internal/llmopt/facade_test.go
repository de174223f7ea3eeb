package llmopt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeClient struct {
	calls     int32
	responses map[string]string
	errs      map[string]error
}

func (f *fakeClient) ChatCompletion(ctx context.Context, model string, messages []Message, params map[string]any) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	if resp, ok := f.responses[model]; ok {
		return resp, nil
	}
	return "default response", nil
}

func TestOptimizedRequestCachesSuccessfulResult(t *testing.T) {
	client := &fakeClient{responses: map[string]string{"gpt-4o": "hello"}}
	o := NewOptimizer(client, nil, DefaultConfig())

	req := Request{Kind: KindGeneral, Model: "gpt-4o", Messages: []Message{{Role: "user", Content: "hi"}}}

	first, err := o.OptimizedRequest(context.Background(), req, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.OptimizedRequest(context.Background(), req, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Content != second.Content {
		t.Errorf("expected cached result to match, got %q vs %q", first.Content, second.Content)
	}
	if atomic.LoadInt32(&client.calls) != 1 {
		t.Fatalf("expected only 1 underlying call due to caching, got %d", client.calls)
	}
}

func TestOptimizedRequestSkipCacheBypassesCache(t *testing.T) {
	client := &fakeClient{responses: map[string]string{"gpt-4o": "hello"}}
	o := NewOptimizer(client, nil, DefaultConfig())

	req := Request{Kind: KindGeneral, Model: "gpt-4o"}
	o.OptimizedRequest(context.Background(), req, Options{SkipCache: true})
	o.OptimizedRequest(context.Background(), req, Options{SkipCache: true})

	if atomic.LoadInt32(&client.calls) != 2 {
		t.Fatalf("expected 2 calls when cache is skipped, got %d", client.calls)
	}
}

func TestOptimizedRequestFallsBackOnPrimaryFailure(t *testing.T) {
	client := &fakeClient{
		errs:      map[string]error{"gpt-4o": errors.New("primary down")},
		responses: map[string]string{"gpt-4o-mini": "fallback response"},
	}
	selector := NewSelector(PreferredModels{KindGeneral: "gpt-4o"}, []string{"gpt-4o-mini"}, nil)
	o := NewOptimizer(client, selector, DefaultConfig())

	result, err := o.OptimizedRequest(context.Background(), Request{Kind: KindGeneral}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "fallback response" || !result.Fallback {
		t.Fatalf("expected fallback result, got %+v", result)
	}
}

func TestBatchSystemSelectionParsesFullResponse(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"": `{"mode_selection":{"mode":"task"},"server_selection":["filesystem"]}`,
	}}
	o := NewOptimizer(client, nil, DefaultConfig())

	selection := o.BatchSystemSelection(context.Background(), "please read a file", nil)
	if selection.Mode != "task" {
		t.Fatalf("expected mode task, got %s", selection.Mode)
	}
	if selection.Fallback {
		t.Error("expected a successfully parsed response to not be a fallback")
	}
}

func TestBatchSystemSelectionDegradesOnParseFailure(t *testing.T) {
	client := &fakeClient{responses: map[string]string{"": "not valid json at all"}}
	o := NewOptimizer(client, nil, DefaultConfig())

	selection := o.BatchSystemSelection(context.Background(), "do something", nil)
	if selection.Mode != "chat" || !selection.Fallback {
		t.Fatalf("expected chat-mode fallback stub, got %+v", selection)
	}
}
