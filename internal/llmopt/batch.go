package llmopt

import (
	"context"
	"sync"
	"time"
)

type batchItem struct {
	req    Request
	result chan batchOutcome
}

type batchOutcome struct {
	result Result
	err    error
}

// Batcher groups batchable requests into per-kind queues. A batch fires
// when its queue reaches maxBatchSize or when the debounce timer
// elapses, whichever comes first. Each batch currently runs as parallel
// single calls under a concurrency cap; the queuing interface allows a
// future true multi-turn batch call without changing callers.
type Batcher struct {
	mu     sync.Mutex
	queues map[Kind][]*batchItem
	timers map[Kind]*time.Timer

	maxBatchSize int
	debounce     time.Duration
	concurrency  int
	call         func(context.Context, Request) (Result, error)
}

// NewBatcher creates a batcher. maxBatchSize defaults to 5, debounce to
// 100ms, concurrency to 5.
func NewBatcher(maxBatchSize int, debounce time.Duration, concurrency int, call func(context.Context, Request) (Result, error)) *Batcher {
	if maxBatchSize <= 0 {
		maxBatchSize = 5
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Batcher{
		queues:       make(map[Kind][]*batchItem),
		timers:       make(map[Kind]*time.Timer),
		maxBatchSize: maxBatchSize,
		debounce:     debounce,
		concurrency:  concurrency,
		call:         call,
	}
}

// Submit enqueues req into its kind's batch and blocks until that batch
// fires and this request's result is ready.
func (b *Batcher) Submit(ctx context.Context, req Request) (Result, error) {
	item := &batchItem{req: req, result: make(chan batchOutcome, 1)}

	b.mu.Lock()
	b.queues[req.Kind] = append(b.queues[req.Kind], item)
	queue := b.queues[req.Kind]
	fireNow := len(queue) >= b.maxBatchSize

	if fireNow {
		if t, ok := b.timers[req.Kind]; ok {
			t.Stop()
			delete(b.timers, req.Kind)
		}
		b.queues[req.Kind] = nil
	} else if _, ok := b.timers[req.Kind]; !ok {
		kind := req.Kind
		b.timers[kind] = time.AfterFunc(b.debounce, func() { b.flush(ctx, kind) })
	}
	b.mu.Unlock()

	if fireNow {
		go b.run(ctx, queue)
	}

	select {
	case out := <-item.result:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (b *Batcher) flush(ctx context.Context, kind Kind) {
	b.mu.Lock()
	queue := b.queues[kind]
	b.queues[kind] = nil
	delete(b.timers, kind)
	b.mu.Unlock()

	if len(queue) == 0 {
		return
	}
	b.run(ctx, queue)
}

func (b *Batcher) run(ctx context.Context, items []*batchItem) {
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(it *batchItem) {
			defer wg.Done()
			defer func() { <-sem }()
			result, err := b.call(ctx, it.req)
			it.result <- batchOutcome{result: result, err: err}
		}(item)
	}

	wg.Wait()
}
