// Package llmopt is the single facade through which all LLM
// chat-completion calls flow: fingerprinted result caching, in-flight
// request deduplication, per-kind batching, and model selection with
// fallback.
package llmopt

import "encoding/json"

// Kind identifies what shape of request is being optimized. Only a
// subset of kinds are batchable.
type Kind string

const (
	KindModeSelection   Kind = "mode_selection"
	KindServerSelection Kind = "server_selection"
	KindToolPlanning    Kind = "tool_planning"
	KindSystemSelection Kind = "system_selection"
	KindGeneral         Kind = "general"
)

func (k Kind) batchable() bool {
	switch k {
	case KindModeSelection, KindServerSelection, KindToolPlanning, KindSystemSelection:
		return true
	default:
		return false
	}
}

// Message is one chat message in a request's content sequence.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single optimizable LLM call.
type Request struct {
	Kind       Kind
	Model      string
	Messages   []Message
	Parameters map[string]any
}

// Options adjusts per-call optimizer behavior.
type Options struct {
	SkipCache bool
}

// Result is what a downstream model call produced.
type Result struct {
	Content  string
	Provider string
	Model    string
	Fallback bool
}

// ModeSelection is the parsed shape of batch_system_selection's
// mode_selection field.
type ModeSelection struct {
	Mode string `json:"mode"`
}

// BatchSelection is the aggregate parsed response for
// batch_system_selection.
type BatchSelection struct {
	Mode                string           `json:"mode"`
	SelectedProviders    []string         `json:"selected_providers"`
	PlannedToolCalls     []map[string]any `json:"planned_tool_calls"`
	OptimizationMetadata map[string]any   `json:"optimization_metadata"`
	Fallback             bool             `json:"fallback"`
}

// defaultBatchSelection is the degraded stub returned when the model's
// batch-selection response can't be parsed at all.
func defaultBatchSelection() BatchSelection {
	return BatchSelection{
		Mode:                 "chat",
		SelectedProviders:    []string{},
		PlannedToolCalls:     []map[string]any{},
		OptimizationMetadata: map[string]any{},
		Fallback:             true,
	}
}

// rawBatchSelection mirrors the model's top-level JSON shape before
// field-by-field defaulting.
type rawBatchSelection struct {
	ModeSelection        *ModeSelection         `json:"mode_selection"`
	ServerSelection      []string               `json:"server_selection"`
	ToolPlanning         []map[string]any       `json:"tool_planning"`
	OptimizationMetadata map[string]any         `json:"optimization_metadata"`
}

// parseModeOnly parses a bare {"mode": "..."} response, tolerating a
// response that also wraps it under a "mode_selection" key.
func parseModeOnly(raw string, out *ModeSelection) bool {
	if err := json.Unmarshal([]byte(raw), out); err == nil && out.Mode != "" {
		return true
	}

	var wrapped struct {
		ModeSelection ModeSelection `json:"mode_selection"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.ModeSelection.Mode != "" {
		*out = wrapped.ModeSelection
		return true
	}

	return false
}

func parseBatchSelection(raw string) (BatchSelection, error) {
	var parsed rawBatchSelection
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return BatchSelection{}, err
	}

	result := defaultBatchSelection()
	result.Fallback = false

	if parsed.ModeSelection != nil && parsed.ModeSelection.Mode != "" {
		result.Mode = parsed.ModeSelection.Mode
	}
	if parsed.ServerSelection != nil {
		result.SelectedProviders = parsed.ServerSelection
	}
	if parsed.ToolPlanning != nil {
		result.PlannedToolCalls = parsed.ToolPlanning
	}
	if parsed.OptimizationMetadata != nil {
		result.OptimizationMetadata = parsed.OptimizationMetadata
	}

	return result, nil
}
