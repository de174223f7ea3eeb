// Package availability tracks which model ids a provider endpoint
// exposes and whether each is currently usable, behind short-TTL caches
// and a bounded probe concurrency.
package availability

import (
	"context"
	"sync"
	"time"
)

// ModelRecord carries a model's adaptive rate-limit state alongside its
// identifier.
type ModelRecord struct {
	ID                string
	AdaptiveHardCap   bool
	AdaptiveLast429At time.Time
	WindowSeconds     int
}

// IsRateLimited reports whether the record currently looks rate-limited:
// a hard cap, or a 429 observed within the window.
func (r ModelRecord) IsRateLimited(now time.Time) bool {
	if r.AdaptiveHardCap {
		return true
	}
	if r.AdaptiveLast429At.IsZero() {
		return false
	}
	window := time.Duration(r.WindowSeconds) * time.Second
	return now.Sub(r.AdaptiveLast429At) < window
}

// ModelLister supplies the provider's current model list.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelRecord, error)
}

// Prober issues a minimal chat completion against a model id to check
// reachability.
type Prober interface {
	Probe(ctx context.Context, model string) (ProbeOutcome, error)
}

// ProbeOutcome classifies a single probe's result.
type ProbeOutcome int

const (
	ProbeAvailable ProbeOutcome = iota
	// ProbeSaturated is a 429: the model exists but is temporarily busy.
	ProbeSaturated
	ProbeUnavailable
)

// Source identifies which tier of the get_available search produced a
// result.
type Source string

const (
	SourcePreferred   Source = "preferred"
	SourceFallback    Source = "fallback"
	SourceAlternative Source = "alternative"
	SourceNone        Source = "none"
)

// Availability is the result of a get_available lookup.
type Availability struct {
	Model     string
	Available bool
	Source    Source
}

type cachedProbe struct {
	outcome   ProbeOutcome
	expiresAt time.Time
}

// Checker is the model availability checker: a global short-TTL model
// list cache, a per-model availability cache, and a bounded-concurrency
// probe mechanism.
type Checker struct {
	mu sync.Mutex

	lister ModelLister
	prober Prober

	modelListTTL time.Duration
	modelList    []ModelRecord
	modelListAt  time.Time

	perModelTTL time.Duration
	perModel    map[string]cachedProbe

	records map[string]ModelRecord

	probeSem         chan struct{}
	lastProbeAt      time.Time
	minProbeInterval time.Duration
}

// Config configures a Checker's TTLs and probe pacing.
type Config struct {
	ModelListTTL     time.Duration
	PerModelTTL      time.Duration
	MaxConcurrentProbes int
	MinProbeInterval time.Duration
}

// DefaultConfig returns the spec's default 30s model list TTL, 60s
// per-model TTL, 2 concurrent probes, 500ms inter-probe delay.
func DefaultConfig() Config {
	return Config{
		ModelListTTL:        30 * time.Second,
		PerModelTTL:         60 * time.Second,
		MaxConcurrentProbes: 2,
		MinProbeInterval:    500 * time.Millisecond,
	}
}

// NewChecker creates an availability checker.
func NewChecker(lister ModelLister, prober Prober, cfg Config) *Checker {
	if cfg.ModelListTTL <= 0 {
		cfg.ModelListTTL = 30 * time.Second
	}
	if cfg.PerModelTTL <= 0 {
		cfg.PerModelTTL = 60 * time.Second
	}
	if cfg.MaxConcurrentProbes <= 0 {
		cfg.MaxConcurrentProbes = 2
	}
	if cfg.MinProbeInterval <= 0 {
		cfg.MinProbeInterval = 500 * time.Millisecond
	}
	return &Checker{
		lister:           lister,
		prober:           prober,
		modelListTTL:     cfg.ModelListTTL,
		perModelTTL:      cfg.PerModelTTL,
		perModel:         make(map[string]cachedProbe),
		records:          make(map[string]ModelRecord),
		probeSem:         make(chan struct{}, cfg.MaxConcurrentProbes),
		minProbeInterval: cfg.MinProbeInterval,
	}
}

// IsRateLimited satisfies llmopt.Availability: reports whether model is
// currently known to be rate-limited.
func (c *Checker) IsRateLimited(model string) bool {
	c.mu.Lock()
	rec, ok := c.records[model]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return rec.IsRateLimited(time.Now())
}

func (c *Checker) modelsList(ctx context.Context) ([]ModelRecord, error) {
	c.mu.Lock()
	if c.modelList != nil && time.Since(c.modelListAt) < c.modelListTTL {
		list := c.modelList
		c.mu.Unlock()
		return list, nil
	}
	c.mu.Unlock()

	list, err := c.lister.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.modelList = list
	c.modelListAt = time.Now()
	for _, rec := range list {
		if _, ok := c.records[rec.ID]; !ok {
			c.records[rec.ID] = rec
		}
	}
	c.mu.Unlock()

	return list, nil
}

// probe checks a model's reachability, consulting and updating the
// per-model cache, respecting the concurrency cap and inter-probe delay.
func (c *Checker) probe(ctx context.Context, model string) ProbeOutcome {
	c.mu.Lock()
	if cached, ok := c.perModel[model]; ok && time.Now().Before(cached.expiresAt) {
		c.mu.Unlock()
		return cached.outcome
	}
	c.mu.Unlock()

	select {
	case c.probeSem <- struct{}{}:
	case <-ctx.Done():
		return ProbeUnavailable
	}
	defer func() { <-c.probeSem }()

	c.mu.Lock()
	wait := c.minProbeInterval - time.Since(c.lastProbeAt)
	c.mu.Unlock()
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ProbeUnavailable
		}
	}

	outcome, err := c.prober.Probe(ctx, model)
	if err != nil {
		outcome = ProbeUnavailable
	}

	c.mu.Lock()
	c.lastProbeAt = time.Now()
	c.perModel[model] = cachedProbe{outcome: outcome, expiresAt: time.Now().Add(c.perModelTTL)}
	if outcome == ProbeSaturated {
		rec := c.records[model]
		rec.ID = model
		rec.AdaptiveLast429At = time.Now()
		if rec.WindowSeconds == 0 {
			rec.WindowSeconds = 60
		}
		c.records[model] = rec
	}
	c.mu.Unlock()

	return outcome
}

func isUsable(outcome ProbeOutcome) bool {
	return outcome == ProbeAvailable || outcome == ProbeSaturated
}

// GetAvailable resolves the first usable model: preferred, then
// fallback, then up to the first 5 models from the cached list (skipping
// rate-limited ones), in that order.
func (c *Checker) GetAvailable(ctx context.Context, preferred, fallback string) Availability {
	if preferred != "" && !c.IsRateLimited(preferred) {
		if isUsable(c.probe(ctx, preferred)) {
			return Availability{Model: preferred, Available: true, Source: SourcePreferred}
		}
	}

	if fallback != "" && !c.IsRateLimited(fallback) {
		if isUsable(c.probe(ctx, fallback)) {
			return Availability{Model: fallback, Available: true, Source: SourceFallback}
		}
	}

	list, err := c.modelsList(ctx)
	if err != nil {
		return Availability{Source: SourceNone}
	}

	scanned := 0
	for _, rec := range list {
		if scanned >= 5 {
			break
		}
		if rec.ID == preferred || rec.ID == fallback {
			continue
		}
		scanned++
		if c.IsRateLimited(rec.ID) {
			continue
		}
		if isUsable(c.probe(ctx, rec.ID)) {
			return Availability{Model: rec.ID, Available: true, Source: SourceAlternative}
		}
	}

	return Availability{Source: SourceNone}
}
