package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaycore/orchestrator/internal/dispatch"
	"github.com/relaycore/orchestrator/internal/llmopt"
	"github.com/relaycore/orchestrator/internal/validate"
	"github.com/relaycore/orchestrator/internal/workflow"
)

// Stages bundles the LLM-backed implementations of every workflow stage
// interface behind the same *llmopt.Optimizer facade, so all of them
// benefit from its caching, in-flight dedup, and batching.
type Stages struct {
	optimizer *llmopt.Optimizer
}

// NewStages builds the stage-processor bundle.
func NewStages(optimizer *llmopt.Optimizer) *Stages {
	return &Stages{optimizer: optimizer}
}

// SelectMode satisfies workflow.ModeSelector.
func (s *Stages) SelectMode(ctx context.Context, userMessage string) (workflow.Mode, error) {
	selection := s.optimizer.BatchSystemSelection(ctx, userMessage, nil)
	switch selection.Mode {
	case string(workflow.ModeTask):
		return workflow.ModeTask, nil
	case string(workflow.ModeDev):
		return workflow.ModeDev, nil
	default:
		return workflow.ModeChat, nil
	}
}

// Respond satisfies workflow.ChatResponder.
func (s *Stages) Respond(ctx context.Context, userMessage string) (string, error) {
	result, err := s.optimizer.OptimizedRequest(ctx, llmopt.Request{
		Kind:     llmopt.KindGeneral,
		Messages: []llmopt.Message{{Role: "user", Content: userMessage}},
	}, llmopt.Options{})
	if err != nil {
		return "", fmt.Errorf("chat response: %w", err)
	}
	return result.Content, nil
}

type planningStep struct {
	ID           string   `json:"id"`
	Action       string   `json:"action"`
	Dependencies []string `json:"dependencies"`
}

// BuildTodo satisfies workflow.TodoBuilder: asks the model to decompose
// the request into a dependency-ordered step list.
func (s *Stages) BuildTodo(ctx context.Context, userMessage string) ([]workflow.TodoItem, error) {
	result, err := s.optimizer.OptimizedRequest(ctx, llmopt.Request{
		Kind: llmopt.KindToolPlanning,
		Messages: []llmopt.Message{{
			Role: "user",
			Content: "Decompose this request into a JSON array of steps, each {id, action, dependencies}, " +
				"where dependencies names prior step ids this step needs completed first. Request: " + userMessage,
		}},
	}, llmopt.Options{})
	if err != nil {
		return nil, fmt.Errorf("build todo: %w", err)
	}

	var steps []planningStep
	if err := json.Unmarshal([]byte(stripFence(result.Content)), &steps); err != nil {
		return nil, fmt.Errorf("build todo: parse plan: %w", err)
	}

	items := make([]workflow.TodoItem, len(steps))
	for i, step := range steps {
		items[i] = workflow.TodoItem{ID: step.ID, Action: step.Action, Dependencies: step.Dependencies}
	}
	return items, nil
}

type plannedCall struct {
	Provider   string         `json:"provider"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// PlanTools satisfies workflow.ToolPlanner.
func (s *Stages) PlanTools(ctx context.Context, item workflow.TodoItem, session *workflow.Session) ([]validate.ToolCall, error) {
	result, err := s.optimizer.OptimizedRequest(ctx, llmopt.Request{
		Kind: llmopt.KindToolPlanning,
		Messages: []llmopt.Message{{
			Role:    "user",
			Content: "Plan the tool calls, as a JSON array of {provider, tool, parameters}, needed to: " + item.Action,
		}},
	}, llmopt.Options{})
	if err != nil {
		return nil, fmt.Errorf("plan tools: %w", err)
	}
	return decodeCalls(result.Content)
}

// Replan satisfies workflow.Replanner, handing the verifier's reasoning
// back to the model for a revised plan.
func (s *Stages) Replan(ctx context.Context, item workflow.TodoItem, verification workflow.VerificationResult) ([]validate.ToolCall, error) {
	result, err := s.optimizer.OptimizedRequest(ctx, llmopt.Request{
		Kind: llmopt.KindToolPlanning,
		Messages: []llmopt.Message{{
			Role: "user",
			Content: fmt.Sprintf(
				"The previous attempt at %q failed verification: %s. Propose a revised JSON array of {provider, tool, parameters} tool calls.",
				item.Action, verification.Reasoning,
			),
		}},
	}, llmopt.Options{SkipCache: true})
	if err != nil {
		return nil, fmt.Errorf("replan: %w", err)
	}
	return decodeCalls(result.Content)
}

type verificationJudgment struct {
	Passed    bool   `json:"passed"`
	Reasoning string `json:"reasoning"`
}

// Verify satisfies workflow.Verifier.
func (s *Stages) Verify(ctx context.Context, item workflow.TodoItem, result dispatch.BatchResult) (workflow.VerificationResult, error) {
	if result.Failed > 0 && result.Successful == 0 {
		return workflow.VerificationResult{Passed: false, Reasoning: "every planned call failed"}, nil
	}

	encoded, _ := json.Marshal(result.FormattedForLLM)
	response, err := s.optimizer.OptimizedRequest(ctx, llmopt.Request{
		Kind: llmopt.KindGeneral,
		Messages: []llmopt.Message{{
			Role: "user",
			Content: fmt.Sprintf(
				"Step %q produced these tool results: %s. Reply with JSON {passed, reasoning} judging whether the step's goal was met.",
				item.Action, string(encoded),
			),
		}},
	}, llmopt.Options{})
	if err != nil {
		return workflow.VerificationResult{}, fmt.Errorf("verify: %w", err)
	}

	var judgment verificationJudgment
	if err := json.Unmarshal([]byte(stripFence(response.Content)), &judgment); err != nil {
		return workflow.VerificationResult{Passed: result.Failed == 0, Reasoning: "unparsable verification, defaulting on dispatch outcome"}, nil
	}
	return workflow.VerificationResult{Passed: judgment.Passed, Reasoning: judgment.Reasoning}, nil
}

// Summarize satisfies workflow.Summarizer.
func (s *Stages) Summarize(ctx context.Context, items []workflow.TodoItem) (string, error) {
	encoded, _ := json.Marshal(items)
	result, err := s.optimizer.OptimizedRequest(ctx, llmopt.Request{
		Kind:     llmopt.KindGeneral,
		Messages: []llmopt.Message{{Role: "user", Content: "Summarize the outcome of this completed task list for the user: " + string(encoded)}},
	}, llmopt.Options{})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return result.Content, nil
}

func decodeCalls(raw string) ([]validate.ToolCall, error) {
	var planned []plannedCall
	if err := json.Unmarshal([]byte(stripFence(raw)), &planned); err != nil {
		return nil, fmt.Errorf("parse planned calls: %w", err)
	}
	calls := make([]validate.ToolCall, len(planned))
	for i, p := range planned {
		calls[i] = validate.ToolCall{Provider: p.Provider, Tool: p.Tool, Parameters: p.Parameters}
	}
	return calls, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
