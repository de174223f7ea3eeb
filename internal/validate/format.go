package validate

// FormatValidator enforces the minimum shape every call must have before
// any later stage reasons about it: a non-empty list, with provider, tool,
// and a parameters object on every entry.
type FormatValidator struct{}

// NewFormatValidator creates the format validator.
func NewFormatValidator() *FormatValidator { return &FormatValidator{} }

func (v *FormatValidator) Name() string { return "format" }

func (v *FormatValidator) Validate(calls []ToolCall) Result {
	result := Result{Valid: true}

	if len(calls) == 0 {
		result.addError(-1, "call list is empty", "")
		return result
	}

	corrected := make([]ToolCall, len(calls))
	for i, call := range calls {
		if call.Provider == "" {
			result.addError(i, "missing provider", "")
		}
		if call.Tool == "" {
			result.addError(i, "missing tool", "")
		}
		if call.Parameters == nil {
			call.Parameters = map[string]any{}
		}
		corrected[i] = call
	}

	if result.Valid {
		result.CorrectedCalls = corrected
	}
	return result
}
