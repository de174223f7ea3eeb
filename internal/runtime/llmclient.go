// Package runtime wires the orchestrator's independently-testable
// packages into concrete adapters against a real model backend and a
// running provider supervisor. Nothing here is exercised by the unit
// tests in the other packages; it exists for cmd/orchestratord.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/relaycore/orchestrator/internal/availability"
	"github.com/relaycore/orchestrator/internal/llmopt"
	"github.com/relaycore/orchestrator/internal/models"
	"github.com/relaycore/orchestrator/internal/validate"
)

// ChatClient wraps an OpenAI-compatible client so it can back both the
// LLM request optimizer and the optional LLM-based tool inspector.
type ChatClient struct {
	client       *openai.Client
	defaultModel string
	fallbacks    []string
}

// NewChatClient builds a ChatClient against baseURL (an OpenAI-compatible
// endpoint) using apiKey for auth. fallbacks are "provider/model" refs
// tried in order, via the models catalog's failover runner, when the
// default model's completion fails with a retryable error.
func NewChatClient(baseURL, apiKey, defaultModel string, fallbacks []string) *ChatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &ChatClient{client: openai.NewClientWithConfig(cfg), defaultModel: defaultModel, fallbacks: fallbacks}
}

// ChatCompletion satisfies llmopt.Client. When model is the default and
// fallbacks are configured, a completion that fails with a retryable
// error (rate limit, server error, timeout) is retried against each
// fallback model in order before giving up.
func (c *ChatClient) ChatCompletion(ctx context.Context, model string, messages []llmopt.Message, params map[string]any) (string, error) {
	if model == "" {
		model = c.defaultModel
	}
	if model != c.defaultModel || len(c.fallbacks) == 0 {
		return c.complete(ctx, model, messages, params)
	}

	result, err := models.RunWithModelFallback(ctx, &models.FallbackConfig{
		PrimaryProvider: "default",
		PrimaryModel:    model,
		Fallbacks:       c.fallbacks,
	}, func(ctx context.Context, provider, candidateModel string) (string, error) {
		return c.complete(ctx, candidateModel, messages, params)
	}, nil)
	if err != nil {
		return "", fmt.Errorf("chat completion (with fallback): %w", err)
	}
	return result.Result, nil
}

func (c *ChatClient) complete(ctx context.Context, model string, messages []llmopt.Message, params map[string]any) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
	}
	if temp, ok := params["temperature"].(float64); ok {
		req.Temperature = float32(temp)
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Validate satisfies inspect.LLMClient, asking the model to judge a
// batch of planned tool calls against a declared intent.
func (c *ChatClient) Validate(ctx context.Context, calls []validate.ToolCall, intent string) (string, error) {
	encoded, err := json.Marshal(calls)
	if err != nil {
		return "", fmt.Errorf("encode calls: %w", err)
	}
	prompt := fmt.Sprintf(
		"Declared intent: %s\nProposed tool calls: %s\nRespond with a JSON array of {valid, risk, reasoning, suggestion} objects, one per call, in order.",
		intent, string(encoded),
	)
	return c.ChatCompletion(ctx, c.defaultModel, []llmopt.Message{{Role: "user", Content: prompt}}, nil)
}

func convertMessages(messages []llmopt.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Prober probes a model's availability with a minimal completion call,
// satisfying availability.Prober.
type Prober struct {
	client *ChatClient
}

// NewProber builds a Prober against the same backend a ChatClient talks to.
func NewProber(client *ChatClient) *Prober { return &Prober{client: client} }

// Probe satisfies availability.Prober with a single-token completion. A
// 429 response is reported as saturated rather than unavailable, per
// the checker's contract.
func (p *Prober) Probe(ctx context.Context, model string) (availability.ProbeOutcome, error) {
	_, err := p.client.ChatCompletion(ctx, model, []llmopt.Message{{Role: "user", Content: "ping"}}, map[string]any{"max_tokens": 1})
	if err == nil {
		return availability.ProbeAvailable, nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return availability.ProbeSaturated, nil
	}
	return availability.ProbeUnavailable, err
}

// ModelLister lists the configured candidate models a availability
// checker should scan when neither the preferred nor fallback model is
// usable. Its roster is the models catalog's built-in registry plus
// whatever operator-configured provider names aren't already in it, so
// capability/tier metadata stays available wherever the catalog knows
// the model, without forcing every deployment to hand-list every id.
type ModelLister struct {
	models []availability.ModelRecord
}

// NewModelLister builds a ModelLister from cat, extended with any
// extraIDs the catalog doesn't already carry (registered as bare,
// capability-less entries so they still get probed and rate-tracked).
func NewModelLister(cat *models.Catalog, extraIDs []string) *ModelLister {
	known := make(map[string]bool)
	var records []availability.ModelRecord

	for _, m := range cat.List(nil) {
		known[m.ID] = true
		records = append(records, availability.ModelRecord{ID: m.ID, WindowSeconds: 60})
	}
	for _, id := range extraIDs {
		if known[id] {
			continue
		}
		known[id] = true
		records = append(records, availability.ModelRecord{ID: id, WindowSeconds: 60})
	}
	return &ModelLister{models: records}
}

// ListModels satisfies availability.ModelLister.
func (l *ModelLister) ListModels(ctx context.Context) ([]availability.ModelRecord, error) {
	return l.models, nil
}
