// Package dispatch executes an already-categorized batch of tool calls:
// approved calls run against the provider supervisor, denied calls get
// synthetic failures, and calls needing approval either run (when
// auto-approved) or are deferred.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaycore/orchestrator/internal/cache"
	"github.com/relaycore/orchestrator/internal/inspect"
	"github.com/relaycore/orchestrator/internal/mcp"
	"github.com/relaycore/orchestrator/internal/validate"
)

// Supervisor is the narrow surface the dispatcher needs from the
// provider manager.
type Supervisor interface {
	CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*mcp.ToolCallResult, error)
}

// History is the call-history store completed dispatches are recorded
// to, in insertion order.
type History interface {
	Record(entry Entry)
}

// Entry is one completed (or synthetically rejected) dispatch.
type Entry struct {
	RequestID string
	Provider  string
	Tool      string
	Success   bool
	Duration  time.Duration
	Result    *mcp.ToolCallResult
	Err       error
}

// Status is a call's terminal dispatch status.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusDenied     Status = "denied"
	StatusDeferred   Status = "deferred"
	StatusDuplicate  Status = "duplicate"
)

// Outcome is one call's dispatch result.
type Outcome struct {
	RequestID string
	CallIndex int
	Provider  string
	Tool      string
	Status    Status
	Result    *mcp.ToolCallResult
	Err       string
	Duration  time.Duration
}

// Config configures dispatcher execution policy.
type Config struct {
	// CallDeadline bounds each individual approved call. Default 60s.
	CallDeadline time.Duration
	// AutoApprove, when set, executes requires_approval calls instead of
	// deferring them.
	AutoApprove bool
	// DedupeWindow, when positive, suppresses re-executing a call with
	// the same provider, tool and canonicalized parameters seen within
	// the window — guarding against a retried or re-replanned batch
	// firing the identical side-effecting call twice. Zero disables
	// dedupe entirely.
	DedupeWindow time.Duration
}

// DefaultConfig returns the standard 60s per-call deadline, no
// auto-approval, no dedupe window.
func DefaultConfig() Config {
	return Config{CallDeadline: 60 * time.Second}
}

// Dispatcher executes categorized batches against a provider supervisor.
type Dispatcher struct {
	supervisor Supervisor
	history    History
	config     Config
	dedupe     *cache.DedupeCache
}

// New creates a dispatcher. A nil history is tolerated (no call is
// recorded, nothing else changes).
func New(supervisor Supervisor, history History, config Config) *Dispatcher {
	if config.CallDeadline <= 0 {
		config.CallDeadline = 60 * time.Second
	}
	d := &Dispatcher{supervisor: supervisor, history: history, config: config}
	if config.DedupeWindow > 0 {
		d.dedupe = cache.NewDedupeCache(cache.DedupeCacheOptions{TTL: config.DedupeWindow, MaxSize: 1024})
	}
	return d
}

// BatchResult is the dispatcher's aggregate return for one batch.
type BatchResult struct {
	Approved        int
	NeedsApproval   int
	Denied          int
	Duplicate       int
	Successful      int
	Failed          int
	Outcomes        []Outcome
	FormattedForLLM []ToolResultBlock
}

// ToolResultBlock is the LLM-facing projection of one outcome.
type ToolResultBlock struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	IsError   bool   `json:"is_error"`
}

// Dispatch runs calls paired by index with their inspector-chain
// verdicts. A call with no corresponding verdict is treated as approved.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []validate.ToolCall, verdicts []inspect.CallVerdict) BatchResult {
	outcomes := make([]Outcome, len(calls))

	for i, call := range calls {
		outcomes[i] = d.dispatchOne(ctx, i, call, verdictFor(verdicts, i))
	}

	return aggregate(outcomes)
}

func verdictFor(verdicts []inspect.CallVerdict, index int) inspect.Verdict {
	if index < len(verdicts) {
		return verdicts[index].Verdict
	}
	return inspect.Approved
}

func (d *Dispatcher) dispatchOne(ctx context.Context, index int, call validate.ToolCall, verdict inspect.Verdict) Outcome {
	outcome := Outcome{
		RequestID: uuid.NewString(),
		CallIndex: index,
		Provider:  call.Provider,
		Tool:      call.Tool,
	}

	if verdict == inspect.Denied {
		outcome.Status = StatusDenied
		outcome.Err = "denied by inspector chain"
		d.record(outcome, nil, false)
		return outcome
	}

	if verdict == inspect.RequiresApproval && !d.config.AutoApprove {
		outcome.Status = StatusDeferred
		d.record(outcome, nil, false)
		return outcome
	}

	if d.dedupe != nil {
		key := call.Provider + "\x00" + call.Tool + "\x00" + validate.CanonicalizeParameters(call.Parameters)
		if d.dedupe.Check(key) {
			outcome.Status = StatusDuplicate
			outcome.Err = "suppressed: identical call dispatched within the dedupe window"
			d.record(outcome, nil, false)
			return outcome
		}
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, d.config.CallDeadline)
	result, err := d.supervisor.CallTool(callCtx, call.Provider, call.RawName, call.Parameters)
	cancel()
	outcome.Duration = time.Since(start)

	switch {
	case err != nil:
		outcome.Status = StatusFailed
		outcome.Err = err.Error()
	case result != nil && result.IsError:
		outcome.Status = StatusFailed
		outcome.Result = result
		outcome.Err = formatResultText(result)
	default:
		outcome.Status = StatusSuccessful
		outcome.Result = result
	}

	d.record(outcome, result, outcome.Status == StatusSuccessful)
	return outcome
}

func (d *Dispatcher) record(outcome Outcome, result *mcp.ToolCallResult, success bool) {
	if d.history == nil {
		return
	}
	var recordErr error
	if outcome.Err != "" {
		recordErr = fmt.Errorf("%s", outcome.Err)
	}
	d.history.Record(Entry{
		RequestID: outcome.RequestID,
		Provider:  outcome.Provider,
		Tool:      outcome.Tool,
		Success:   success,
		Duration:  outcome.Duration,
		Result:    result,
		Err:       recordErr,
	})
}

func aggregate(outcomes []Outcome) BatchResult {
	result := BatchResult{Outcomes: outcomes}

	for _, o := range outcomes {
		switch o.Status {
		case StatusDenied:
			result.Denied++
		case StatusDeferred:
			result.NeedsApproval++
		case StatusDuplicate:
			result.Duplicate++
		case StatusSuccessful:
			result.Approved++
			result.Successful++
		case StatusFailed:
			result.Approved++
			result.Failed++
		}
		result.FormattedForLLM = append(result.FormattedForLLM, formatBlock(o))
	}

	return result
}

func formatBlock(o Outcome) ToolResultBlock {
	block := ToolResultBlock{RequestID: o.RequestID}

	switch o.Status {
	case StatusDenied:
		block.IsError = true
		block.Text = "denied: " + o.Err
	case StatusDeferred:
		block.Text = "awaiting approval"
	case StatusDuplicate:
		block.Text = o.Err
	case StatusFailed:
		block.IsError = true
		if o.Result != nil {
			block.Text = formatResultText(o.Result)
		} else {
			block.Text = o.Err
		}
	case StatusSuccessful:
		block.Text = formatResultText(o.Result)
	}

	return block
}

// formatResultText extracts the LLM-facing text from a provider reply:
// the concatenation of content[].text entries, or the stringified
// result when none are present.
func formatResultText(result *mcp.ToolCallResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, c := range result.Content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}
