package validate

import (
	"encoding/json"
	"fmt"
	"sort"
)

// History is the call-history store the History validator consults. It is
// satisfied by the dispatcher's session history.
type History interface {
	// RepeatCount returns how many times an exact (provider, tool,
	// canonicalized parameters) call has completed recently.
	RepeatCount(provider, tool string, canonicalParams string) int
	// FailureCount returns how many times a (provider, tool) pair has
	// failed in the current session.
	FailureCount(provider, tool string) int
}

// HistoryValidator rejects calls that repeat too often or target a pair
// that has already failed repeatedly this session.
type HistoryValidator struct {
	store             History
	repeatThreshold   int
	failureThreshold  int
}

// NewHistoryValidator creates the history validator. repeatThreshold is
// the maximum number of identical recent completions tolerated;
// failureThreshold is the maximum number of prior failures tolerated for
// a (provider, tool) pair.
func NewHistoryValidator(store History, repeatThreshold, failureThreshold int) *HistoryValidator {
	if repeatThreshold <= 0 {
		repeatThreshold = 3
	}
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &HistoryValidator{store: store, repeatThreshold: repeatThreshold, failureThreshold: failureThreshold}
}

func (v *HistoryValidator) Name() string { return "history" }

func (v *HistoryValidator) Validate(calls []ToolCall) Result {
	result := Result{Valid: true}
	if v.store == nil {
		result.CorrectedCalls = calls
		return result
	}

	for i, call := range calls {
		canonical := CanonicalizeParameters(call.Parameters)

		if n := v.store.RepeatCount(call.Provider, call.Tool, canonical); n >= v.repeatThreshold {
			result.addError(i, fmt.Sprintf("call repeated %d times recently (threshold %d)", n, v.repeatThreshold), "")
			continue
		}
		if n := v.store.FailureCount(call.Provider, call.Tool); n >= v.failureThreshold {
			result.addError(i, fmt.Sprintf("(provider, tool) pair has failed %d times this session (threshold %d)", n, v.failureThreshold), "")
		}
	}

	if result.Valid {
		result.CorrectedCalls = calls
	}
	return result
}

// CanonicalizeParameters produces a stable string representation of a
// parameters map for history comparison, independent of key order.
func CanonicalizeParameters(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}

	data, err := json.Marshal(ordered)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}
