package runtime

import (
	"context"

	"github.com/relaycore/orchestrator/internal/dispatch"
	"github.com/relaycore/orchestrator/internal/history"
	"github.com/relaycore/orchestrator/internal/inspect"
	"github.com/relaycore/orchestrator/internal/validate"
)

// PipelineDispatcher composes the validation pipeline, inspector chain
// and dispatcher into the single call the workflow engine needs, so the
// engine never has to know about any of their internals.
type PipelineDispatcher struct {
	pipeline *validate.Pipeline
	chain    *inspect.Chain
	dispatch *dispatch.Dispatcher
	history  *history.Session
}

// NewPipelineDispatcher builds the adapter.
func NewPipelineDispatcher(pipeline *validate.Pipeline, chain *inspect.Chain, d *dispatch.Dispatcher, h *history.Session) *PipelineDispatcher {
	return &PipelineDispatcher{pipeline: pipeline, chain: chain, dispatch: d, history: h}
}

// Dispatch satisfies workflow.Dispatcher: validate, inspect, then
// execute the (possibly corrected) call list. A hard validation
// failure short-circuits with no calls dispatched.
func (p *PipelineDispatcher) Dispatch(ctx context.Context, calls []validate.ToolCall) (dispatch.BatchResult, error) {
	result := p.pipeline.Run(calls)
	if !result.Valid {
		return dispatch.BatchResult{Failed: len(calls)}, nil
	}

	final := calls
	if result.CorrectedCalls != nil {
		final = result.CorrectedCalls
	}

	for _, call := range final {
		p.history.NoteRepeat(call.Provider, call.Tool, validate.CanonicalizeParameters(call.Parameters))
	}

	verdicts := p.chain.Run(final)
	return p.dispatch.Dispatch(ctx, final, verdicts), nil
}
