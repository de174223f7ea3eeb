package llmopt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInFlightGroupDeduplicatesConcurrentCalls(t *testing.T) {
	g := newInFlightGroup()
	var executions int32

	var wg sync.WaitGroup
	results := make([]Result, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, _ := g.Do("same-key", func() (Result, error) {
				atomic.AddInt32(&executions, 1)
				time.Sleep(10 * time.Millisecond)
				return Result{Content: "shared"}, nil
			})
			results[idx] = result
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&executions) != 1 {
		t.Fatalf("expected exactly 1 underlying execution, got %d", executions)
	}
	for _, r := range results {
		if r.Content != "shared" {
			t.Errorf("expected all callers to receive the shared result, got %+v", r)
		}
	}
}

func TestInFlightGroupAllowsSequentialCalls(t *testing.T) {
	g := newInFlightGroup()
	var executions int32

	for i := 0; i < 3; i++ {
		g.Do("key", func() (Result, error) {
			atomic.AddInt32(&executions, 1)
			return Result{}, nil
		})
	}

	if atomic.LoadInt32(&executions) != 3 {
		t.Fatalf("expected 3 separate executions once each prior call completed, got %d", executions)
	}
}
