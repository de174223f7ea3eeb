// Package history is the in-session call-history store the validation
// pipeline's history stage and the dispatcher both read and write:
// recent-repeat counts, per-pair failure counts, and the full dispatch
// log, all scoped to a single running session.
package history

import (
	"sync"

	"github.com/relaycore/orchestrator/internal/dispatch"
)

type callKey struct {
	provider string
	tool     string
	params   string
}

type pairKey struct {
	provider string
	tool     string
}

// Session is a single session's call-history store. It satisfies both
// validate.History (RepeatCount/FailureCount) and dispatch.History
// (Record), so one store backs the whole pipeline.
type Session struct {
	mu       sync.Mutex
	repeats  map[callKey]int
	failures map[pairKey]int
	entries  []dispatch.Entry
	maxSize  int
}

// New creates an empty session history store. maxSize bounds the
// retained entry log; 0 means unbounded.
func New(maxSize int) *Session {
	return &Session{
		repeats:  make(map[callKey]int),
		failures: make(map[pairKey]int),
		maxSize:  maxSize,
	}
}

// RepeatCount satisfies validate.History.
func (s *Session) RepeatCount(provider, tool, canonicalParams string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeats[callKey{provider, tool, canonicalParams}]
}

// FailureCount satisfies validate.History.
func (s *Session) FailureCount(provider, tool string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[pairKey{provider, tool}]
}

// Record satisfies dispatch.History, tallying the completed call
// against both the repeat and failure counters before appending it to
// the session log.
func (s *Session) Record(entry dispatch.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if s.maxSize > 0 && len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}

	if !entry.Success {
		key := pairKey{entry.Provider, entry.Tool}
		s.failures[key]++
	}
}

// NoteRepeat increments a call's repeat counter. The dispatcher calls
// this with the canonicalized parameters it already computed while
// recording, so the history store doesn't need to re-derive them.
func (s *Session) NoteRepeat(provider, tool, canonicalParams string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeats[callKey{provider, tool, canonicalParams}]++
}

// Entries returns a copy of the retained dispatch log, oldest first.
func (s *Session) Entries() []dispatch.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dispatch.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
