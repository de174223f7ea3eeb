package runtime

import "github.com/relaycore/orchestrator/internal/mcp"

// ManagerStates adapts *mcp.Manager to validate.ProviderStates.
type ManagerStates struct {
	manager *mcp.Manager
}

// NewManagerStates wraps a provider supervisor for the MCP-sync validator.
func NewManagerStates(manager *mcp.Manager) *ManagerStates {
	return &ManagerStates{manager: manager}
}

// IsReady satisfies validate.ProviderStates.
func (m *ManagerStates) IsReady(provider string) bool {
	return m.manager.State(provider) == mcp.StateReady
}
