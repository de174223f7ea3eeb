package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting orchestrator
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - MCP provider lifecycle and tool-call latency
//   - LLM optimizer cache/dedup/batch behavior
//   - Rate limiter and circuit breaker state
//   - Dispatcher outcomes
//   - Workflow item progression
type Metrics struct {
	// ProviderState is a gauge of provider state (0=spawning,1=handshaking,2=ready,3=draining,4=exited).
	// Labels: provider
	ProviderState *prometheus.GaugeVec

	// ProviderCallDuration measures tools/call round-trip latency.
	// Labels: provider, outcome (success|error|timeout)
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ProviderCallDuration *prometheus.HistogramVec

	// ProviderCallCounter counts tools/call invocations.
	// Labels: provider, outcome
	ProviderCallCounter *prometheus.CounterVec

	// ToolDispatchCounter counts dispatcher outcomes.
	// Labels: outcome (approved|denied|requires_approval|failed)
	ToolDispatchCounter *prometheus.CounterVec

	// ValidationRejections counts validation pipeline rejections.
	// Labels: validator (format|history|schema|mcp_sync)
	ValidationRejections *prometheus.CounterVec

	// LLMRequestDuration measures LLM HTTP request latency in seconds.
	// Labels: model, kind
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by model, kind, and status.
	// Labels: model, kind, status (success|error|fallback)
	LLMRequestCounter *prometheus.CounterVec

	// LLMCacheHits counts fingerprint cache hits and misses.
	// Labels: outcome (hit|miss|dedup)
	LLMCacheHits *prometheus.CounterVec

	// CircuitBreakerState is a gauge of breaker state (0=closed,1=half_open,2=open).
	CircuitBreakerState prometheus.Gauge

	// RateLimiterConcurrency tracks the current adaptive concurrency cap.
	RateLimiterConcurrency prometheus.Gauge

	// RateLimiterQueueDepth tracks the current priority queue depth.
	RateLimiterQueueDepth prometheus.Gauge

	// WorkflowItemCounter counts workflow items by terminal status.
	// Labels: status (done|failed|skipped|blocked)
	WorkflowItemCounter *prometheus.CounterVec

	// WorkflowItemDuration measures time from in_progress to a terminal state.
	// Buckets: 0.5s, 1s, 5s, 10s, 30s, 60s, 120s, 300s
	WorkflowItemDuration prometheus.Histogram

	// ActiveSessions is a gauge tracking current active workflow sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ProviderState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_provider_state",
				Help: "Current provider state (0=spawning,1=handshaking,2=ready,3=draining,4=exited)",
			},
			[]string{"provider"},
		),

		ProviderCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_provider_call_duration_seconds",
				Help:    "Duration of tools/call round trips in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"provider", "outcome"},
		),

		ProviderCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_provider_calls_total",
				Help: "Total number of tools/call invocations by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		ToolDispatchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tool_dispatch_total",
				Help: "Total number of dispatcher outcomes by category",
			},
			[]string{"outcome"},
		),

		ValidationRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_validation_rejections_total",
				Help: "Total number of validation pipeline rejections by validator stage",
			},
			[]string{"validator"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_llm_request_duration_seconds",
				Help:    "Duration of LLM HTTP requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model", "kind"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_llm_requests_total",
				Help: "Total number of LLM requests by model, kind, and status",
			},
			[]string{"model", "kind", "status"},
		),

		LLMCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_llm_cache_total",
				Help: "Total number of fingerprint cache hits, misses, and in-flight dedups",
			},
			[]string{"outcome"},
		),

		CircuitBreakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed,1=half_open,2=open)",
			},
		),

		RateLimiterConcurrency: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_rate_limiter_concurrency",
				Help: "Current adaptive concurrency cap",
			},
		),

		RateLimiterQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_rate_limiter_queue_depth",
				Help: "Current priority queue depth",
			},
		),

		WorkflowItemCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_workflow_items_total",
				Help: "Total number of workflow items by terminal status",
			},
			[]string{"status"},
		),

		WorkflowItemDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestrator_workflow_item_duration_seconds",
				Help:    "Duration from in_progress to a terminal state",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_active_sessions",
				Help: "Current number of active workflow sessions",
			},
		),
	}
}
