package inspect

import (
	"github.com/relaycore/orchestrator/internal/tools/policy"
	"github.com/relaycore/orchestrator/internal/validate"
)

// PolicyInspector enforces a profile/allow/deny tool policy ahead of the
// other inspectors, using the same pattern-matching and group-expansion
// resolver the tool-authorization layer uses elsewhere in the project.
type PolicyInspector struct {
	resolver *policy.Resolver
	policy   *policy.Policy
}

// NewPolicyInspector creates a policy inspector. A nil policy allows
// every call through unjudged (the chain's other inspectors still run).
func NewPolicyInspector(resolver *policy.Resolver, p *policy.Policy) *PolicyInspector {
	if resolver == nil {
		resolver = policy.NewResolver()
	}
	return &PolicyInspector{resolver: resolver, policy: p}
}

func (i *PolicyInspector) Name() string { return "policy" }

func (i *PolicyInspector) Inspect(calls []validate.ToolCall) []CallVerdict {
	verdicts := make([]CallVerdict, len(calls))
	for idx, call := range calls {
		verdicts[idx] = CallVerdict{CallIndex: idx, Verdict: Approved}
		if i.policy == nil {
			continue
		}
		decision := i.resolver.Decide(i.policy, call.Tool)
		if !decision.Allowed {
			verdicts[idx] = CallVerdict{
				CallIndex: idx,
				Verdict:   Denied,
				Findings: []Finding{{
					Inspector: i.Name(),
					Verdict:   Denied,
					Reason:    decision.Reason,
				}},
			}
		}
	}
	return verdicts
}
