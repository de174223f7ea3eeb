package validate

import "fmt"

// ProviderStates reports whether a provider is currently ready to accept
// calls. Satisfied by *mcp.Manager's State method.
type ProviderStates interface {
	IsReady(provider string) bool
}

// MCPSyncValidator is the last line of defense before dispatch: it
// confirms the provider is actually ready and that the tool still
// appears in the provider's latest tools/list, since the catalog may
// have changed since the call was planned. A tool renamed out from under
// the plan is autocorrected to its nearest match on the same provider
// rather than rejected outright.
type MCPSyncValidator struct {
	catalog Catalog
	states  ProviderStates
}

// NewMCPSyncValidator creates the MCP-sync validator.
func NewMCPSyncValidator(cat Catalog, states ProviderStates) *MCPSyncValidator {
	return &MCPSyncValidator{catalog: cat, states: states}
}

func (v *MCPSyncValidator) Name() string { return "mcp_sync" }

func (v *MCPSyncValidator) Validate(calls []ToolCall) Result {
	result := Result{Valid: true}
	corrected := make([]ToolCall, len(calls))

	for i, call := range calls {
		if v.states != nil && !v.states.IsReady(call.Provider) {
			result.addError(i, fmt.Sprintf("provider %q is not ready", call.Provider), "")
			corrected[i] = call
			continue
		}

		if _, ok := v.catalog.Resolve(call.Provider, call.Tool); ok {
			corrected[i] = call
			continue
		}

		var names []string
		for _, d := range v.catalog.ListFrom([]string{call.Provider}) {
			names = append(names, d.QualifiedName)
		}
		if match, _, ok := bestMatch(call.Tool, names); ok {
			result.addWarning(i, fmt.Sprintf("renamed %q to %q per latest tool list", call.Tool, match), match)
			call.Tool = match
			corrected[i] = call
			continue
		}

		result.addError(i, fmt.Sprintf("tool %q not present for provider %q in latest tool list", call.Tool, call.Provider), "")
		corrected[i] = call
	}

	if result.Valid {
		result.CorrectedCalls = corrected
	}
	return result
}
