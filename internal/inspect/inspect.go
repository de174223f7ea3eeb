// Package inspect implements the post-validation policy chain: a series
// of inspectors that categorize already-schema-valid calls as approved,
// needing human approval, or denied.
package inspect

import (
	"github.com/relaycore/orchestrator/internal/validate"
)

// Verdict is a call's categorization after the inspector chain runs.
type Verdict string

const (
	Approved         Verdict = "approved"
	RequiresApproval Verdict = "requires_approval"
	Denied           Verdict = "denied"
)

func rank(v Verdict) int {
	switch v {
	case Denied:
		return 2
	case RequiresApproval:
		return 1
	default:
		return 0
	}
}

// combine keeps whichever of a, b ranks higher: Denied beats
// RequiresApproval beats Approved.
func combine(a, b Verdict) Verdict {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Finding is one inspector's opinion on a single call.
type Finding struct {
	Inspector string  `json:"inspector"`
	Verdict   Verdict `json:"verdict"`
	Reason    string  `json:"reason"`
}

// CallVerdict is a call's combined verdict and the findings that produced it.
type CallVerdict struct {
	CallIndex int       `json:"call_index"`
	Verdict   Verdict   `json:"verdict"`
	Findings  []Finding `json:"findings,omitempty"`
}

// Inspector is one stage of the chain. It returns only the verdicts for
// calls it has an opinion about; calls it omits are left Approved by
// that inspector.
type Inspector interface {
	Name() string
	Inspect(calls []validate.ToolCall) []CallVerdict
}

// Chain runs inspectors in sequence and merges their opinions per call.
type Chain struct {
	inspectors []Inspector
}

// NewChain builds a chain running inspectors in the given order.
func NewChain(inspectors ...Inspector) *Chain {
	return &Chain{inspectors: inspectors}
}

// Run evaluates every inspector against calls and returns one merged
// CallVerdict per call, in call order.
func (c *Chain) Run(calls []validate.ToolCall) []CallVerdict {
	results := make([]CallVerdict, len(calls))
	for i := range calls {
		results[i] = CallVerdict{CallIndex: i, Verdict: Approved}
	}

	for _, insp := range c.inspectors {
		for _, v := range insp.Inspect(calls) {
			cur := results[v.CallIndex]
			cur.Verdict = combine(cur.Verdict, v.Verdict)
			cur.Findings = append(cur.Findings, v.Findings...)
			results[v.CallIndex] = cur
		}
	}

	return results
}
