// Package validate implements the multi-stage, early-reject validation
// pipeline applied to a planner's proposed tool calls before dispatch.
package validate

import (
	"github.com/relaycore/orchestrator/internal/catalog"
)

// ToolCall is a single proposed tool invocation, in whichever name form
// the planner emitted it in. Validators normalize and may rewrite it in
// place as the pipeline progresses.
type ToolCall struct {
	Provider   string         `json:"provider"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`

	// RawName is filled in by the Schema stage once the descriptor has
	// been resolved, so MCP sync doesn't need to re-resolve names.
	RawName string `json:"-"`
}

// Severity distinguishes a hard rejection from an advisory note.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding raised against a specific call index.
type Issue struct {
	CallIndex int      `json:"call_index"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// Result is what each validator (and the pipeline as a whole) returns.
type Result struct {
	Valid          bool       `json:"valid"`
	Errors         []Issue    `json:"errors,omitempty"`
	Warnings       []Issue    `json:"warnings,omitempty"`
	CorrectedCalls []ToolCall `json:"corrected_calls,omitempty"`
}

func (r *Result) addError(idx int, msg string, suggestion string) {
	r.Valid = false
	r.Errors = append(r.Errors, Issue{CallIndex: idx, Severity: SeverityError, Message: msg, Suggestion: suggestion})
}

func (r *Result) addWarning(idx int, msg string, suggestion string) {
	r.Warnings = append(r.Warnings, Issue{CallIndex: idx, Severity: SeverityWarning, Message: msg, Suggestion: suggestion})
}

// Validator is one stage of the pipeline. It receives the current
// (possibly already-corrected) call list and returns a result; on a hard
// failure the pipeline stops, otherwise it continues with
// result.CorrectedCalls (or the input unchanged if nil).
type Validator interface {
	Name() string
	Validate(calls []ToolCall) Result
}

// Catalog is the subset of *catalog.Catalog the Schema and MCP-sync
// validators depend on.
type Catalog interface {
	Resolve(provider, name string) (catalog.Descriptor, bool)
	ListFrom(providers []string) []catalog.Descriptor
	ListAllTools() []catalog.Descriptor
}
