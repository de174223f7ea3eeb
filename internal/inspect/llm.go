package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaycore/orchestrator/internal/validate"
)

// LLMRisk is the risk level an LLM validator assigns to a single call.
type LLMRisk string

const (
	RiskNone     LLMRisk = "none"
	RiskLow      LLMRisk = "low"
	RiskMedium   LLMRisk = "medium"
	RiskHigh     LLMRisk = "high"
	RiskCritical LLMRisk = "critical"
)

// LLMValidation is one call's judgment from the LLM validator.
type LLMValidation struct {
	Valid      bool    `json:"valid"`
	Risk       LLMRisk `json:"risk"`
	Reasoning  string  `json:"reasoning"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// FallbackBehavior governs what happens when the validator service
// itself errors out.
type FallbackBehavior string

const (
	FallbackAllow FallbackBehavior = "allow"
	FallbackDeny  FallbackBehavior = "deny"
)

// LLMClient is the narrow surface the LLM inspector needs: given the
// proposed calls and a declared user intent, return the raw model
// response text.
type LLMClient interface {
	Validate(ctx context.Context, calls []validate.ToolCall, intent string) (string, error)
}

// LLMInspector defers risk judgment to an attached model. It is
// optional; a nil client is never wired by callers.
type LLMInspector struct {
	client   LLMClient
	intent   string
	fallback FallbackBehavior
}

// NewLLMInspector creates the LLM inspector. fallback defaults to allow.
func NewLLMInspector(client LLMClient, intent string, fallback FallbackBehavior) *LLMInspector {
	if fallback == "" {
		fallback = FallbackAllow
	}
	return &LLMInspector{client: client, intent: intent, fallback: fallback}
}

func (l *LLMInspector) Name() string { return "llm_validator" }

func (l *LLMInspector) Inspect(calls []validate.ToolCall) []CallVerdict {
	raw, err := l.client.Validate(context.Background(), calls, l.intent)
	if err != nil {
		return l.fallbackVerdicts(calls, fmt.Sprintf("validator service error: %v", err))
	}

	validations, err := parseValidations(raw)
	if err != nil || len(validations) != len(calls) {
		return l.fallbackVerdicts(calls, "validator returned a malformed or incomplete response")
	}

	var out []CallVerdict
	for i, v := range validations {
		verdict := riskVerdict(v.Risk)
		if verdict == Approved {
			continue
		}
		out = append(out, CallVerdict{
			CallIndex: i, Verdict: verdict,
			Findings: []Finding{{Inspector: l.Name(), Verdict: verdict, Reason: v.Reasoning}},
		})
	}
	return out
}

func (l *LLMInspector) fallbackVerdicts(calls []validate.ToolCall, reason string) []CallVerdict {
	if l.fallback != FallbackDeny {
		return nil
	}
	out := make([]CallVerdict, len(calls))
	for i := range calls {
		out[i] = CallVerdict{
			CallIndex: i, Verdict: Denied,
			Findings: []Finding{{Inspector: l.Name(), Verdict: Denied, Reason: reason}},
		}
	}
	return out
}

func riskVerdict(risk LLMRisk) Verdict {
	switch risk {
	case RiskHigh, RiskCritical:
		return Denied
	case RiskMedium:
		return RequiresApproval
	default:
		return Approved
	}
}

// parseValidations tolerates a bare JSON array, an object wrapping the
// array in a "validations" key, and markdown code fences around either.
func parseValidations(raw string) ([]LLMValidation, error) {
	raw = stripCodeFence(raw)

	var arr []LLMValidation
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr, nil
	}

	var wrapped struct {
		Validations []LLMValidation `json:"validations"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Validations != nil {
		return wrapped.Validations, nil
	}

	return nil, fmt.Errorf("could not parse validator response as an array or {validations: [...]}")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
