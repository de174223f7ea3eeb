// Package errs provides the error taxonomy shared by every orchestrator
// component: one closed Kind per category, carried on an ordinary Go error
// so callers use errors.As/errors.Is the same way they would for any other
// wrapped error.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure into exactly one of the taxonomy buckets.
// Every call site that returns an OrchestratorError MUST pick one.
type Kind string

const (
	// Config is bad startup configuration. Fatal; halts initialization.
	Config Kind = "CONFIG"

	// ProviderUnreachable is a subprocess that failed to spawn, exited, or
	// whose stdio broke. Surfaced to the caller; the workflow engine treats
	// it as retriable across items.
	ProviderUnreachable Kind = "PROVIDER_UNREACHABLE"

	// ProviderNotReady is a provider that is spawning or draining. Transient.
	ProviderNotReady Kind = "PROVIDER_NOT_READY"

	// ToolNotFound means no descriptor matched after normalization. This is
	// a soft failure (success=false with a suggestion list), never a panic.
	ToolNotFound Kind = "TOOL_NOT_FOUND"

	// ToolSchemaViolation is a required parameter missing or type mismatch
	// with no autocorrection possible. Hard failure for that call.
	ToolSchemaViolation Kind = "TOOL_SCHEMA_VIOLATION"

	// ToolTimeout is an awaiter deadline that elapsed. Retriable at the
	// workflow layer.
	ToolTimeout Kind = "TOOL_TIMEOUT"

	// ToolError is a JSON-RPC error object returned by a provider; the
	// category is derived from error.code by the caller before wrapping.
	ToolError Kind = "TOOL_ERROR"

	// InspectionDenied is a policy inspector denial.
	InspectionDenied Kind = "INSPECTION_DENIED"

	// ValidationFailed is a pipeline rejection of the whole batch, returned
	// with per-call diagnostics.
	ValidationFailed Kind = "VALIDATION_FAILED"

	// LLMRateLimited is a 429 or an open circuit. Retriable with backoff.
	LLMRateLimited Kind = "LLM_RATE_LIMITED"

	// LLMUnavailable means every fallback model was exhausted.
	LLMUnavailable Kind = "LLM_UNAVAILABLE"

	// LLMParse is a response that failed to parse the expected JSON shape;
	// the optimizer falls back to a degraded sequential path.
	LLMParse Kind = "LLM_PARSE"

	// WorkflowGiveup is an item that exceeded max_attempts.
	WorkflowGiveup Kind = "WORKFLOW_GIVEUP"
)

// transient reports whether this kind is retried within the layer that owns
// its policy (rate limiter retries HTTP, workflow retries items) rather than
// surfaced immediately. The dispatcher itself never retries on its own.
func (k Kind) transient() bool {
	switch k {
	case ProviderNotReady, ToolTimeout, LLMRateLimited:
		return true
	default:
		return false
	}
}

// Retriable reports whether a caller one layer up may reasonably retry the
// operation that produced this kind of error.
func (k Kind) Retriable() bool {
	return k.transient()
}

// OrchestratorError is the structured error value every orchestrator
// component returns. It carries a taxonomy Kind, an optional suggestion for
// the human-facing session summary, and the underlying cause for
// errors.Unwrap chains.
type OrchestratorError struct {
	// Kind is the taxonomy bucket this error belongs to.
	Kind Kind

	// Component names the subsystem the error originated in, e.g.
	// "mcp.manager", "validate.schema", "ratelimit.breaker".
	Component string

	// Reason is a short, redacted, human-readable explanation suitable for
	// a session summary. Never a stack trace.
	Reason string

	// Suggestion is an optional corrective hint (e.g. a "did you mean"
	// tool name) surfaced alongside TOOL_NOT_FOUND failures.
	Suggestion string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *OrchestratorError) Error() string {
	if e.Component != "" {
		if e.Reason != "" {
			return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Component, e.Reason)
		}
		if e.Cause != nil {
			return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Component, e.Cause)
		}
		return fmt.Sprintf("[%s] %s", e.Kind, e.Component)
	}
	if e.Reason != "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error so errors.Is/errors.As see through
// OrchestratorError to whatever produced it.
func (e *OrchestratorError) Unwrap() error {
	return e.Cause
}

// Retriable reports whether this error's kind is one the caller may retry.
func (e *OrchestratorError) Retriable() bool {
	return e.Kind.Retriable()
}

// New constructs an OrchestratorError with the given kind and reason.
func New(kind Kind, component, reason string) *OrchestratorError {
	return &OrchestratorError{Kind: kind, Component: component, Reason: reason}
}

// Wrap constructs an OrchestratorError around an existing error, preserving
// it for errors.Unwrap/errors.As.
func Wrap(kind Kind, component string, cause error) *OrchestratorError {
	if cause == nil {
		return nil
	}
	return &OrchestratorError{Kind: kind, Component: component, Cause: cause}
}

// WithSuggestion attaches a corrective hint and returns the receiver for
// chaining at the call site.
func (e *OrchestratorError) WithSuggestion(s string) *OrchestratorError {
	e.Suggestion = s
	return e
}

// As extracts an *OrchestratorError from an error chain.
func As(err error) (*OrchestratorError, bool) {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// Is reports whether err is an OrchestratorError (or wraps one) of the given
// kind.
func Is(err error, kind Kind) bool {
	oe, ok := As(err)
	return ok && oe.Kind == kind
}
