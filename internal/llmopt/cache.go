package llmopt

import (
	"sync"
	"time"
)

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// ResultCache is a short-TTL, LRU-evicted cache of successful results
// keyed by request fingerprint.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string // insertion/refresh order, oldest first
	ttl     time.Duration
	maxSize int
}

// ResultCacheOptions configures a ResultCache.
type ResultCacheOptions struct {
	TTL     time.Duration
	MaxSize int
}

// DefaultResultCacheOptions is the default 60s TTL, 100-entry capacity.
func DefaultResultCacheOptions() ResultCacheOptions {
	return ResultCacheOptions{TTL: 60 * time.Second, MaxSize: 100}
}

// NewResultCache creates a result cache.
func NewResultCache(opts ResultCacheOptions) *ResultCache {
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
	}
}

// Get returns the cached result for fingerprint, if present and unexpired.
func (c *ResultCache) Get(fingerprint string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return Result{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, fingerprint)
		return Result{}, false
	}
	return entry.result, true
}

// Put stores a successful result under fingerprint, evicting the oldest
// entry first if the cache is at capacity.
func (c *ResultCache) Put(fingerprint string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; !exists {
		c.order = append(c.order, fingerprint)
	}
	c.entries[fingerprint] = cacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}

	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Size returns the current number of cached entries.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
