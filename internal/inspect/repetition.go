package inspect

import (
	"fmt"
	"sync"

	"github.com/relaycore/orchestrator/internal/validate"
)

type repetitionEntry struct {
	qualifiedName string
	paramsKey     string
}

// RepetitionInspector watches a per-session sliding window of recently
// seen calls and flags runaway repetition.
type RepetitionInspector struct {
	mu sync.Mutex

	windowSize                int
	maxConsecutiveRepetitions int
	strict                    bool

	window []repetitionEntry
}

// NewRepetitionInspector creates the repetition inspector. windowSize
// defaults to 20, maxConsecutiveRepetitions to 3. When strict is set,
// violations are Denied instead of RequiresApproval.
func NewRepetitionInspector(windowSize, maxConsecutiveRepetitions int, strict bool) *RepetitionInspector {
	if windowSize <= 0 {
		windowSize = 20
	}
	if maxConsecutiveRepetitions <= 0 {
		maxConsecutiveRepetitions = 3
	}
	return &RepetitionInspector{
		windowSize:                windowSize,
		maxConsecutiveRepetitions: maxConsecutiveRepetitions,
		strict:                    strict,
	}
}

func (r *RepetitionInspector) Name() string { return "repetition" }

func (r *RepetitionInspector) Inspect(calls []validate.ToolCall) []CallVerdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []CallVerdict

	for i, call := range calls {
		entry := repetitionEntry{
			qualifiedName: call.Tool,
			paramsKey:     validate.CanonicalizeParameters(call.Parameters),
		}

		nameCount := 0
		exactMatch := false
		for _, e := range r.window {
			if e.qualifiedName != entry.qualifiedName {
				continue
			}
			nameCount++
			if e.paramsKey == entry.paramsKey {
				exactMatch = true
			}
		}

		verdict := Approved
		var reason string
		if nameCount >= r.maxConsecutiveRepetitions || exactMatch {
			if r.strict {
				verdict = Denied
			} else {
				verdict = RequiresApproval
			}
			reason = fmt.Sprintf("%q appears %d times in the recent call window", entry.qualifiedName, nameCount+1)
		}

		r.window = append(r.window, entry)
		if len(r.window) > r.windowSize {
			r.window = r.window[len(r.window)-r.windowSize:]
		}

		if verdict == Approved {
			continue
		}
		out = append(out, CallVerdict{
			CallIndex: i, Verdict: verdict,
			Findings: []Finding{{Inspector: r.Name(), Verdict: verdict, Reason: reason}},
		})
	}

	return out
}
