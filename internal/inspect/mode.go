package inspect

import (
	"strings"

	"github.com/relaycore/orchestrator/internal/validate"
)

// Mode is the orchestrator's current operating mode, which bounds what
// kinds of tools may run without approval.
type Mode string

const (
	ModeChat Mode = "chat"
	ModeTask Mode = "task"
	ModeAuto Mode = "auto"
)

var readonlyTools = map[string]bool{
	"read_file": true, "list_directory": true, "search": true,
	"web_search": true, "web_fetch": true, "navigate": true,
	"screenshot": true, "status": true, "read": true,
}

var writeVerbs = []string{"write", "delete", "remove", "edit", "create", "update", "exec", "run", "bash", "apply_patch"}

func isWriteLike(name string) bool {
	lower := strings.ToLower(name)
	for _, v := range writeVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// ModeInspector denies write-shaped tools in chat mode and in an
// explicit readonly context, regardless of mode.
type ModeInspector struct {
	mode         Mode
	readonlyMode bool
}

// NewModeInspector creates the mode inspector for the given operating
// mode. readonlyMode, when set, denies write/delete tools under any mode.
func NewModeInspector(mode Mode, readonlyMode bool) *ModeInspector {
	return &ModeInspector{mode: mode, readonlyMode: readonlyMode}
}

func (m *ModeInspector) Name() string { return "permission_mode" }

func (m *ModeInspector) Inspect(calls []validate.ToolCall) []CallVerdict {
	var out []CallVerdict

	for i, call := range calls {
		name := call.RawName
		if name == "" {
			name = call.Tool
		}

		if m.readonlyMode && isWriteLike(name) {
			out = append(out, CallVerdict{
				CallIndex: i, Verdict: Denied,
				Findings: []Finding{{Inspector: m.Name(), Verdict: Denied, Reason: "write/delete tool denied in readonly context"}},
			})
			continue
		}

		if m.mode == ModeChat && !readonlyTools[name] {
			out = append(out, CallVerdict{
				CallIndex: i, Verdict: Denied,
				Findings: []Finding{{Inspector: m.Name(), Verdict: Denied, Reason: "only readonly tools are allowed in chat mode"}},
			})
		}
	}

	return out
}
