package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relaycore/orchestrator/internal/inspect"
	"github.com/relaycore/orchestrator/internal/mcp"
	"github.com/relaycore/orchestrator/internal/validate"
)

type fakeSupervisor struct {
	results map[string]*mcp.ToolCallResult
	errs    map[string]error
	delay   time.Duration
}

func (f *fakeSupervisor) CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*mcp.ToolCallResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	key := serverID + "/" + toolName
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return &mcp.ToolCallResult{Content: []mcp.ToolResultContent{{Type: "text", Text: "ok"}}}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []Entry
}

func (f *fakeHistory) Record(entry Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func TestDispatchApprovedSuccessful(t *testing.T) {
	sup := &fakeSupervisor{results: map[string]*mcp.ToolCallResult{
		"filesystem/read_file": {Content: []mcp.ToolResultContent{{Type: "text", Text: "contents"}}},
	}}
	hist := &fakeHistory{}
	d := New(sup, hist, DefaultConfig())

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "filesystem__read_file", RawName: "read_file", Parameters: map[string]any{"path": "/a"}}}
	verdicts := []inspect.CallVerdict{{CallIndex: 0, Verdict: inspect.Approved}}

	result := d.Dispatch(context.Background(), calls, verdicts)
	if result.Successful != 1 || result.Failed != 0 {
		t.Fatalf("expected 1 successful, got %+v", result)
	}
	if result.FormattedForLLM[0].Text != "contents" {
		t.Errorf("expected formatted text 'contents', got %q", result.FormattedForLLM[0].Text)
	}
	if len(hist.entries) != 1 || !hist.entries[0].Success {
		t.Errorf("expected 1 successful history entry, got %+v", hist.entries)
	}
}

func TestDispatchDeniedIsSyntheticFailure(t *testing.T) {
	sup := &fakeSupervisor{}
	hist := &fakeHistory{}
	d := New(sup, hist, DefaultConfig())

	calls := []validate.ToolCall{{Provider: "shell", Tool: "exec", RawName: "exec"}}
	verdicts := []inspect.CallVerdict{{CallIndex: 0, Verdict: inspect.Denied}}

	result := d.Dispatch(context.Background(), calls, verdicts)
	if result.Denied != 1 || result.Approved != 0 {
		t.Fatalf("expected 1 denied and 0 approved, got %+v", result)
	}
	if !result.FormattedForLLM[0].IsError {
		t.Error("expected denied outcome to be marked as an error in the formatted block")
	}
}

func TestDispatchDeferredWithoutAutoApprove(t *testing.T) {
	sup := &fakeSupervisor{}
	d := New(sup, nil, DefaultConfig())

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "delete_file", RawName: "delete_file"}}
	verdicts := []inspect.CallVerdict{{CallIndex: 0, Verdict: inspect.RequiresApproval}}

	result := d.Dispatch(context.Background(), calls, verdicts)
	if result.NeedsApproval != 1 || result.Approved != 0 {
		t.Fatalf("expected call to be deferred, got %+v", result)
	}
}

func TestDispatchAutoApproveExecutesRequiresApproval(t *testing.T) {
	sup := &fakeSupervisor{}
	d := New(sup, nil, Config{AutoApprove: true})

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "delete_file", RawName: "delete_file"}}
	verdicts := []inspect.CallVerdict{{CallIndex: 0, Verdict: inspect.RequiresApproval}}

	result := d.Dispatch(context.Background(), calls, verdicts)
	if result.Successful != 1 {
		t.Fatalf("expected auto-approve to execute the call, got %+v", result)
	}
}

func TestDispatchSupervisorErrorIsFailure(t *testing.T) {
	sup := &fakeSupervisor{errs: map[string]error{"filesystem/read_file": errors.New("provider unavailable")}}
	hist := &fakeHistory{}
	d := New(sup, hist, DefaultConfig())

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "read_file", RawName: "read_file"}}
	verdicts := []inspect.CallVerdict{{CallIndex: 0, Verdict: inspect.Approved}}

	result := d.Dispatch(context.Background(), calls, verdicts)
	if result.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", result)
	}
	if hist.entries[0].Success {
		t.Error("expected history entry to record failure")
	}
}

func TestDispatchMissingVerdictDefaultsApproved(t *testing.T) {
	sup := &fakeSupervisor{}
	d := New(sup, nil, DefaultConfig())

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "read_file", RawName: "read_file"}}
	result := d.Dispatch(context.Background(), calls, nil)
	if result.Successful != 1 {
		t.Fatalf("expected call with no verdict to default to approved, got %+v", result)
	}
}

func TestDispatchPerCallDeadlineExceeded(t *testing.T) {
	sup := &fakeSupervisor{delay: 50 * time.Millisecond}
	d := New(sup, nil, Config{CallDeadline: 5 * time.Millisecond})

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "read_file", RawName: "read_file"}}
	result := d.Dispatch(context.Background(), calls, nil)
	if result.Failed != 1 {
		t.Fatalf("expected deadline exceeded to produce a failure, got %+v", result)
	}
}

func TestDispatchOutcomesPreserveInputOrder(t *testing.T) {
	sup := &fakeSupervisor{}
	d := New(sup, nil, DefaultConfig())

	calls := []validate.ToolCall{
		{Provider: "a", Tool: "one", RawName: "one"},
		{Provider: "b", Tool: "two", RawName: "two"},
		{Provider: "c", Tool: "three", RawName: "three"},
	}
	result := d.Dispatch(context.Background(), calls, nil)
	for i, o := range result.Outcomes {
		if o.CallIndex != i {
			t.Errorf("expected outcome %d to have CallIndex %d, got %d", i, i, o.CallIndex)
		}
	}
}
