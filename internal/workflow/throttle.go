package workflow

import (
	"sync"
	"time"
)

// Throttle gates dev-mode self-analysis behind a cooldown so a
// self-analysis request cannot retrigger itself in a feedback loop.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastRun  time.Time
	now      func() time.Time
}

// NewThrottle creates a throttle with the given cooldown (default 5
// minutes when zero).
func NewThrottle(cooldown time.Duration) *Throttle {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Throttle{cooldown: cooldown, now: time.Now}
}

// TryEnter reports whether a new self-analysis run may start now. If
// not, it returns the remaining cooldown duration. On success, it
// records the run start time.
func (t *Throttle) TryEnter() (ok bool, remaining time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if !t.lastRun.IsZero() {
		elapsed := now.Sub(t.lastRun)
		if elapsed < t.cooldown {
			return false, t.cooldown - elapsed
		}
	}
	t.lastRun = now
	return true, 0
}
