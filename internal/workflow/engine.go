package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaycore/orchestrator/internal/dispatch"
	"github.com/relaycore/orchestrator/internal/retry"
	"github.com/relaycore/orchestrator/internal/validate"
)

// ModeSelector chooses a session's top-level branch.
type ModeSelector interface {
	SelectMode(ctx context.Context, userMessage string) (Mode, error)
}

// ChatResponder answers a chat-mode session directly, bypassing the
// TODO machinery entirely.
type ChatResponder interface {
	Respond(ctx context.Context, userMessage string) (string, error)
}

// TodoBuilder produces a dependency-ordered TODO list from a user
// message.
type TodoBuilder interface {
	BuildTodo(ctx context.Context, userMessage string) ([]TodoItem, error)
}

// ToolPlanner plans the tool calls for one item.
type ToolPlanner interface {
	PlanTools(ctx context.Context, item TodoItem, session *Session) ([]validate.ToolCall, error)
}

// Dispatcher executes a planned batch of tool calls. Concrete
// implementations wire the validation pipeline, inspector chain, and
// dispatch.Dispatcher together; this package only needs the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, calls []validate.ToolCall) (dispatch.BatchResult, error)
}

// Verifier judges whether an item's tool results satisfy its action.
type Verifier interface {
	Verify(ctx context.Context, item TodoItem, result dispatch.BatchResult) (VerificationResult, error)
}

// Replanner produces a revised tool plan after a failed verification.
// An empty returned slice signals the item cannot be salvaged.
type Replanner interface {
	Replan(ctx context.Context, item TodoItem, verification VerificationResult) ([]validate.ToolCall, error)
}

// Summarizer assembles the session's final textual result from all item
// outcomes.
type Summarizer interface {
	Summarize(ctx context.Context, items []TodoItem) (string, error)
}

// SelfAnalyzer runs a dev-mode self-analysis pass, out of scope beyond
// its cooldown-gated entry point.
type SelfAnalyzer interface {
	Analyze(ctx context.Context, userMessage string) (string, error)
}

// Config controls the engine's attempt and concurrency limits.
type Config struct {
	MaxAttemptsPerItem  int
	ParallelItems       int
	SelfAnalysisCooldown time.Duration
	TreatSkippedAsDone  bool

	// CallRetry governs transient-error retries of a single PlanTools or
	// Dispatch call, independent of the item-level replan loop driven by
	// MaxAttemptsPerItem. Zero value falls back to a single attempt (no
	// retry); set explicitly (e.g. retry.DefaultConfig()) to enable retries.
	CallRetry retry.Config
}

// DefaultConfig returns the spec's defaults: 3 attempts, up to 10
// parallel items, 300000ms (5 minute) self-analysis cooldown, and a
// single attempt (no retry) per PlanTools/Dispatch call — deployments
// that want transient-error retries on those calls set CallRetry
// explicitly (e.g. retry.DefaultConfig()).
func DefaultConfig() Config {
	return Config{
		MaxAttemptsPerItem:   3,
		ParallelItems:        10,
		SelfAnalysisCooldown: 5 * time.Minute,
		CallRetry:            retry.Config{MaxAttempts: 1},
	}
}

// Engine drives sessions through mode selection, TODO planning, and the
// per-item plan/execute/verify/replan loop.
type Engine struct {
	modeSelector  ModeSelector
	chat          ChatResponder
	builder       TodoBuilder
	planner       ToolPlanner
	dispatcher    Dispatcher
	verifier      Verifier
	replanner     Replanner
	summarizer    Summarizer
	selfAnalyzer  SelfAnalyzer
	selfThrottle  *Throttle

	maxAttempts        int
	parallelItems      int
	treatSkippedAsDone bool
	callRetry          retry.Config
}

// Deps bundles every stage implementation the engine needs. SelfAnalyzer
// may be left nil, in which case a dev-mode session that clears the
// cooldown gate gets a stub acknowledgement instead of a real analysis.
type Deps struct {
	ModeSelector ModeSelector
	Chat         ChatResponder
	Builder      TodoBuilder
	Planner      ToolPlanner
	Dispatcher   Dispatcher
	Verifier     Verifier
	Replanner    Replanner
	Summarizer   Summarizer
	SelfAnalyzer SelfAnalyzer
}

// New creates an engine from its stage dependencies and config.
func New(deps Deps, cfg Config) *Engine {
	if cfg.MaxAttemptsPerItem <= 0 {
		cfg.MaxAttemptsPerItem = 3
	}
	if cfg.ParallelItems <= 0 {
		cfg.ParallelItems = 10
	}
	if cfg.CallRetry.MaxAttempts <= 0 {
		cfg.CallRetry = retry.Config{MaxAttempts: 1}
	}
	return &Engine{
		modeSelector:       deps.ModeSelector,
		chat:               deps.Chat,
		builder:            deps.Builder,
		planner:            deps.Planner,
		dispatcher:         deps.Dispatcher,
		verifier:           deps.Verifier,
		replanner:          deps.Replanner,
		summarizer:         deps.Summarizer,
		selfAnalyzer:       deps.SelfAnalyzer,
		selfThrottle:       NewThrottle(cfg.SelfAnalysisCooldown),
		maxAttempts:        cfg.MaxAttemptsPerItem,
		parallelItems:      cfg.ParallelItems,
		treatSkippedAsDone: cfg.TreatSkippedAsDone,
		callRetry:          cfg.CallRetry,
	}
}

// Run drives a session from mode selection through to a final outcome.
func (e *Engine) Run(ctx context.Context, session *Session) (SessionOutcome, error) {
	mode, err := e.modeSelector.SelectMode(ctx, session.UserMessage)
	if err != nil {
		return SessionOutcome{}, fmt.Errorf("workflow: mode selection: %w", err)
	}
	session.Mode = mode

	switch mode {
	case ModeChat:
		response, err := e.chat.Respond(ctx, session.UserMessage)
		if err != nil {
			return SessionOutcome{}, fmt.Errorf("workflow: chat response: %w", err)
		}
		return SessionOutcome{Mode: mode, Chat: &ChatResult{Response: response}}, nil

	case ModeDev:
		return e.runDev(ctx, session)

	case ModeTask:
		return e.runTask(ctx, session)

	default:
		return SessionOutcome{}, fmt.Errorf("workflow: unknown mode %q", mode)
	}
}

func (e *Engine) runDev(ctx context.Context, session *Session) (SessionOutcome, error) {
	ok, remaining := e.selfThrottle.TryEnter()
	if !ok {
		return SessionOutcome{Mode: ModeDev, Throttled: &ThrottledResult{Remaining: remaining}}, nil
	}
	if e.selfAnalyzer == nil {
		return SessionOutcome{Mode: ModeDev, Chat: &ChatResult{Response: "self-analysis accepted"}}, nil
	}
	response, err := e.selfAnalyzer.Analyze(ctx, session.UserMessage)
	if err != nil {
		return SessionOutcome{}, fmt.Errorf("workflow: self-analysis: %w", err)
	}
	return SessionOutcome{Mode: ModeDev, Chat: &ChatResult{Response: response}}, nil
}

func (e *Engine) runTask(ctx context.Context, session *Session) (SessionOutcome, error) {
	items, err := e.builder.BuildTodo(ctx, session.UserMessage)
	if err != nil {
		return SessionOutcome{}, fmt.Errorf("workflow: todo building: %w", err)
	}

	dag, err := BuildDAG(items)
	if err != nil {
		return SessionOutcome{}, err
	}
	session.DAG = dag

	if err := e.runItems(ctx, dag, session); err != nil {
		return SessionOutcome{}, err
	}

	final := dag.Snapshot()
	summary, err := e.summarizer.Summarize(ctx, final)
	if err != nil {
		return SessionOutcome{}, fmt.Errorf("workflow: summarize: %w", err)
	}

	return SessionOutcome{Mode: ModeTask, Task: &TaskResult{Items: final, Summary: summary}}, nil
}

// runItems schedules items across a bounded worker pool: items with no
// path between them in the DAG may run in parallel, items on the same
// path run serially because a dependent never becomes eligible until
// its dependencies are done.
func (e *Engine) runItems(ctx context.Context, dag *DAG, session *Session) error {
	total := dag.Len()
	if total == 0 {
		return nil
	}

	sem := make(chan struct{}, e.parallelItems)
	done := make(chan struct{}, total)
	var wg sync.WaitGroup
	var launchMu sync.Mutex
	launched := make(map[string]bool, total)

	launch := func(id string) {
		launchMu.Lock()
		if launched[id] {
			launchMu.Unlock()
			return
		}
		launched[id] = true
		launchMu.Unlock()

		dag.MarkStarted(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				dag.SetStatus(id, StatusFailed)
				done <- struct{}{}
				return
			}
			defer func() { <-sem }()

			e.runItem(ctx, dag, id, session)
			done <- struct{}{}
		}()
	}

	for _, id := range dag.Eligible(e.treatSkippedAsDone) {
		launch(id)
	}

	completed := 0
	for completed < total && !dag.AllTerminal() {
		select {
		case <-done:
			completed++
			dag.PropagateBlocked(e.treatSkippedAsDone)
			for _, id := range dag.Eligible(e.treatSkippedAsDone) {
				launch(id)
			}
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
	}

	wg.Wait()
	return nil
}

// runItem drives one item through plan-tools -> execute-tools -> verify
// -> (done | replan | fail), up to maxAttempts.
func (e *Engine) runItem(ctx context.Context, dag *DAG, id string, session *Session) {
	item := dag.Get(id)
	if item == nil {
		return
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		item.Attempts = attempt

		calls := item.PlannedCalls
		if len(calls) == 0 {
			planned, retryResult := retry.DoWithValue(ctx, e.callRetry, func() ([]validate.ToolCall, error) {
				return e.planner.PlanTools(ctx, *item, session)
			})
			if retryResult.Err != nil {
				dag.SetStatus(id, StatusFailed)
				return
			}
			calls = planned
			item.PlannedCalls = planned
		}

		result, retryResult := retry.DoWithValue(ctx, e.callRetry, func() (dispatch.BatchResult, error) {
			return e.dispatcher.Dispatch(ctx, calls)
		})
		if retryResult.Err != nil {
			dag.SetStatus(id, StatusFailed)
			return
		}
		item.Results = result.Outcomes

		verification, err := e.verifier.Verify(ctx, *item, result)
		if err == nil && verification.Passed {
			item.Verification = &verification
			dag.SetStatus(id, StatusDone)
			return
		}
		if err != nil {
			verification = VerificationResult{Passed: false, Reasoning: err.Error()}
		}
		item.Verification = &verification

		if attempt == e.maxAttempts {
			dag.SetStatus(id, StatusFailed)
			return
		}

		dag.SetStatus(id, StatusReplanning)
		revised, rerr := e.replanner.Replan(ctx, *item, verification)
		if rerr != nil || len(revised) == 0 {
			dag.SetStatus(id, StatusFailed)
			return
		}
		item.PlannedCalls = revised
		dag.SetStatus(id, StatusInProgress)
	}
}
