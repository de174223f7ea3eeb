package llmopt

import (
	"context"
	"time"
)

// Client is the narrow surface the optimizer needs from a chat
// completion backend.
type Client interface {
	ChatCompletion(ctx context.Context, model string, messages []Message, params map[string]any) (string, error)
}

// Config configures an Optimizer.
type Config struct {
	MaxBatchSize int
	Debounce     time.Duration
	Concurrency  int
	Cache        ResultCacheOptions
}

// DefaultConfig returns the spec's default batching and cache settings.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 5,
		Debounce:     100 * time.Millisecond,
		Concurrency:  5,
		Cache:        DefaultResultCacheOptions(),
	}
}

// Optimizer is the single facade through which all LLM chat-completion
// calls flow.
type Optimizer struct {
	client   Client
	selector *Selector
	cache    *ResultCache
	inflight *inFlightGroup
	batcher  *Batcher
}

// NewOptimizer creates an optimizer. selector may be nil, in which case
// each request's own Model field is used with no fallback.
func NewOptimizer(client Client, selector *Selector, cfg Config) *Optimizer {
	o := &Optimizer{
		client:   client,
		selector: selector,
		cache:    NewResultCache(cfg.Cache),
		inflight: newInFlightGroup(),
	}
	o.batcher = NewBatcher(cfg.MaxBatchSize, cfg.Debounce, cfg.Concurrency, o.execute)
	return o
}

// OptimizedRequest is the facade's single entry point for a chat
// completion call: fingerprinted cache lookup, in-flight deduplication,
// and (for batchable kinds) per-kind batching all happen transparently.
func (o *Optimizer) OptimizedRequest(ctx context.Context, req Request, opts Options) (Result, error) {
	fp := Fingerprint(req)

	if !opts.SkipCache {
		if cached, ok := o.cache.Get(fp); ok {
			return cached, nil
		}
	}

	result, err := o.inflight.Do(fp, func() (Result, error) {
		if req.Kind.batchable() {
			return o.batcher.Submit(ctx, req)
		}
		return o.execute(ctx, req)
	})
	if err != nil {
		return Result{}, err
	}

	if !opts.SkipCache {
		o.cache.Put(fp, result)
	}
	return result, nil
}

// execute selects a model (consulting the selector's fallback chain)
// and dispatches the call, trying successive fallbacks on failure.
func (o *Optimizer) execute(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	var remaining []string
	if o.selector != nil {
		model, remaining = o.selector.Select(req.Kind)
	}
	if model == "" {
		model = req.Model
	}

	candidates := append([]string{model}, remaining...)

	var lastErr error
	for i, candidate := range candidates {
		if i > 0 && candidate == "" {
			continue
		}
		content, err := o.client.ChatCompletion(ctx, candidate, req.Messages, req.Parameters)
		if err == nil {
			return Result{Content: content, Model: candidate, Fallback: candidate != model}, nil
		}
		lastErr = err
	}

	return Result{}, lastErr
}

// BatchSystemSelection resolves the combined mode/provider/tool-planning
// decision for a user message in one LLM round-trip, degrading
// gracefully when the response can't be parsed.
func (o *Optimizer) BatchSystemSelection(ctx context.Context, userMessage string, ctxPayload map[string]any) BatchSelection {
	req := Request{
		Kind:       KindSystemSelection,
		Messages:   []Message{{Role: "user", Content: userMessage}},
		Parameters: ctxPayload,
	}

	result, err := o.OptimizedRequest(ctx, req, Options{})
	if err == nil {
		if selection, parseErr := parseBatchSelection(result.Content); parseErr == nil {
			return selection
		}
	}

	return o.degradeToModeSelection(ctx, userMessage)
}

// degradeToModeSelection is the transparent fallback when the combined
// selection response is missing or unparsable: ask for mode_selection
// alone and fall back to a chat-mode stub if even that fails.
func (o *Optimizer) degradeToModeSelection(ctx context.Context, userMessage string) BatchSelection {
	modeReq := Request{Kind: KindModeSelection, Messages: []Message{{Role: "user", Content: userMessage}}}

	result, err := o.OptimizedRequest(ctx, modeReq, Options{})
	if err != nil {
		return defaultBatchSelection()
	}

	var mode ModeSelection
	if parseModeOnly(result.Content, &mode) && mode.Mode != "" {
		stub := defaultBatchSelection()
		stub.Mode = mode.Mode
		return stub
	}

	return defaultBatchSelection()
}
