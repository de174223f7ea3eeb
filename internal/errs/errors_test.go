package errs

import (
	"errors"
	"testing"
)

func TestKind_Retriable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{ProviderNotReady, true},
		{ToolTimeout, true},
		{LLMRateLimited, true},
		{Config, false},
		{ToolNotFound, false},
		{ToolSchemaViolation, false},
		{InspectionDenied, false},
		{ValidationFailed, false},
		{LLMUnavailable, false},
		{LLMParse, false},
		{WorkflowGiveup, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Retriable(); got != tt.want {
				t.Errorf("Retriable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrchestratorError_Error(t *testing.T) {
	err := New(ToolSchemaViolation, "validate.schema", "missing required field content")
	got := err.Error()
	if got != "[TOOL_SCHEMA_VIOLATION] validate.schema: missing required field content" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOrchestratorError_WithSuggestion(t *testing.T) {
	err := New(ToolNotFound, "catalog", "no tool named write_fiel").
		WithSuggestion("write_file")

	if err.Suggestion != "write_file" {
		t.Errorf("Suggestion = %q, want %q", err.Suggestion, "write_file")
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ProviderUnreachable, "mcp.transport", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through to the wrapped cause")
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}

func TestWrap_NilCause(t *testing.T) {
	if err := Wrap(ProviderUnreachable, "mcp.transport", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestAs(t *testing.T) {
	wrapped := New(InspectionDenied, "inspect.security", "destructive filesystem write")
	outer := errors.New("dispatch failed")
	_ = outer

	oe, ok := As(wrapped)
	if !ok {
		t.Fatal("As() should succeed on an *OrchestratorError")
	}
	if oe.Kind != InspectionDenied {
		t.Errorf("Kind = %s, want %s", oe.Kind, InspectionDenied)
	}

	if _, ok := As(errors.New("plain error")); ok {
		t.Error("As() should fail on a plain error")
	}
}

func TestIs(t *testing.T) {
	err := New(LLMRateLimited, "llmopt.client", "circuit open")

	if !Is(err, LLMRateLimited) {
		t.Error("Is() should match on the same kind")
	}
	if Is(err, LLMUnavailable) {
		t.Error("Is() should not match a different kind")
	}
}

func TestOrchestratorError_ErrorNoReason(t *testing.T) {
	cause := errors.New("EOF")
	err := Wrap(ToolTimeout, "dispatch.awaiter", cause)

	got := err.Error()
	if got != "[TOOL_TIMEOUT] dispatch.awaiter: EOF" {
		t.Errorf("Error() = %q", got)
	}
}
