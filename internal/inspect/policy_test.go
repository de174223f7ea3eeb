package inspect

import (
	"testing"

	"github.com/relaycore/orchestrator/internal/tools/policy"
	"github.com/relaycore/orchestrator/internal/validate"
)

func TestPolicyInspectorNilPolicyAllowsEverything(t *testing.T) {
	insp := NewPolicyInspector(nil, nil)
	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "read"}}
	verdicts := insp.Inspect(calls)
	if verdicts[0].Verdict != Approved {
		t.Fatalf("expected approved with no policy configured, got %s", verdicts[0].Verdict)
	}
}

func TestPolicyInspectorDeniesToolNotInAllowList(t *testing.T) {
	p := policy.NewPolicy(policy.ProfileMinimal)
	insp := NewPolicyInspector(policy.NewResolver(), p)

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "write"}}
	verdicts := insp.Inspect(calls)
	if verdicts[0].Verdict != Denied {
		t.Fatalf("expected denied for a tool outside the minimal profile, got %s", verdicts[0].Verdict)
	}
	if len(verdicts[0].Findings) != 1 || verdicts[0].Findings[0].Reason == "" {
		t.Fatalf("expected a finding with a reason, got %+v", verdicts[0].Findings)
	}
}

func TestPolicyInspectorDenyOverridesAllow(t *testing.T) {
	p := policy.NewPolicy(policy.ProfileFull).WithDeny("write")
	insp := NewPolicyInspector(policy.NewResolver(), p)

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "write"}}
	verdicts := insp.Inspect(calls)
	if verdicts[0].Verdict != Denied {
		t.Fatalf("expected deny rule to win even under the full profile, got %s", verdicts[0].Verdict)
	}
}

func TestPolicyInspectorAllowsPermittedTool(t *testing.T) {
	p := policy.NewPolicy(policy.ProfileCoding)
	insp := NewPolicyInspector(policy.NewResolver(), p)

	calls := []validate.ToolCall{{Provider: "filesystem", Tool: "read"}}
	verdicts := insp.Inspect(calls)
	if verdicts[0].Verdict != Approved {
		t.Fatalf("expected read permitted under the coding profile, got %s", verdicts[0].Verdict)
	}
}
