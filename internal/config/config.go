package config

import "fmt"

// Config is the top-level orchestrator configuration, decoded from YAML or
// JSON5 by LoadRaw + decodeRawConfig. Every field maps directly onto a
// recognized configuration key.
type Config struct {
	LLM         LLMConfig                  `yaml:"llm"`
	RateLimiter RateLimiterConfig          `yaml:"rate_limiter"`
	MCP         MCPConfig                  `yaml:"mcp"`
	Inspection  InspectionConfig           `yaml:"inspection"`
	Workflow    WorkflowConfig             `yaml:"workflow"`
	Providers   map[string]ProviderConfig  `yaml:"providers"`
}

// LLMConfig configures the HTTP surface and caching/batching behavior of the
// LLM request optimizer.
type LLMConfig struct {
	Endpoint      string      `yaml:"endpoint"`
	TimeoutMS     int         `yaml:"timeout_ms"`
	CacheTTLMS    int         `yaml:"cache_ttl_ms"`
	CacheCapacity int         `yaml:"cache_capacity"`
	Batch         BatchConfig `yaml:"batch"`

	// Fallbacks lists "provider/model" candidates tried in order when the
	// default model's completion fails with a retryable error.
	Fallbacks []string `yaml:"fallbacks"`
}

// BatchConfig configures request batching by kind.
type BatchConfig struct {
	MaxSize     int `yaml:"max_size"`
	DebounceMS  int `yaml:"debounce_ms"`
}

// RateLimiterConfig configures the adaptive rate limiter and its embedded
// circuit breaker.
type RateLimiterConfig struct {
	MaxConcurrent  int                  `yaml:"max_concurrent"`
	BaseDelayMS    int                  `yaml:"base_delay_ms"`
	MaxDelayMS     int                  `yaml:"max_delay_ms"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures the three-state circuit breaker embedded
// in the rate limiter.
type CircuitBreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	RecoveryMS       int `yaml:"recovery_ms"`
	HalfOpenAdmitMax int `yaml:"half_open_admit_max"`
}

// MCPConfig configures provider supervisor timeouts.
type MCPConfig struct {
	InitializeTimeoutMS int `yaml:"initialize_timeout_ms"`
	ToolCallTimeoutMS   int `yaml:"tool_call_timeout_ms"`
	ShutdownGraceMS     int `yaml:"shutdown_grace_ms"`

	// DedupeWindowMS suppresses re-dispatching an identical call (same
	// provider, tool and parameters) seen within the window. 0 disables.
	DedupeWindowMS int `yaml:"dedupe_window_ms"`
}

// InspectionMode selects which policy inspectors are active.
type InspectionMode string

const (
	InspectionModeChat InspectionMode = "chat"
	InspectionModeTask InspectionMode = "task"
	InspectionModeAuto InspectionMode = "auto"
)

// InspectionConfig configures the policy inspector chain.
type InspectionConfig struct {
	Mode            InspectionMode `yaml:"mode"`
	MaxRepetitions  int            `yaml:"max_repetitions"`
	HistoryWindow   int            `yaml:"history_window"`
}

// WorkflowConfig configures the workflow engine.
type WorkflowConfig struct {
	MaxAttemptsPerItem      int `yaml:"max_attempts_per_item"`
	ParallelItems           int `yaml:"parallel_items"`
	SelfAnalysisCooldownMS  int `yaml:"self_analysis_cooldown_ms"`
}

// ProviderConfig configures a single MCP provider launch spec.
type ProviderConfig struct {
	Command               string            `yaml:"command"`
	Args                  []string          `yaml:"args"`
	Env                   map[string]string `yaml:"env"`
	Enabled               bool              `yaml:"enabled"`
	FilesystemTmpRewrite  bool              `yaml:"filesystem_tmp_rewrite"`
}

// Default returns a Config populated with every documented default.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			TimeoutMS:     30000,
			CacheTTLMS:    60000,
			CacheCapacity: 100,
			Batch: BatchConfig{
				MaxSize:    5,
				DebounceMS: 100,
			},
		},
		RateLimiter: RateLimiterConfig{
			MaxConcurrent: 3,
			BaseDelayMS:   100,
			MaxDelayMS:    5000,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				RecoveryMS:       30000,
				HalfOpenAdmitMax: 3,
			},
		},
		MCP: MCPConfig{
			InitializeTimeoutMS: 20000,
			ToolCallTimeoutMS:   60000,
			ShutdownGraceMS:     3000,
			DedupeWindowMS:      2000,
		},
		Inspection: InspectionConfig{
			Mode:           InspectionModeAuto,
			MaxRepetitions: 3,
			HistoryWindow:  20,
		},
		Workflow: WorkflowConfig{
			MaxAttemptsPerItem:     3,
			ParallelItems:          10,
			SelfAnalysisCooldownMS: 300000,
		},
		Providers: map[string]ProviderConfig{},
	}
}

// applyDefaults fills in zero-valued fields on a freshly decoded Config with
// Default()'s values, so a config file only needs to specify overrides.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.LLM.TimeoutMS == 0 {
		cfg.LLM.TimeoutMS = d.LLM.TimeoutMS
	}
	if cfg.LLM.CacheTTLMS == 0 {
		cfg.LLM.CacheTTLMS = d.LLM.CacheTTLMS
	}
	if cfg.LLM.CacheCapacity == 0 {
		cfg.LLM.CacheCapacity = d.LLM.CacheCapacity
	}
	if cfg.LLM.Batch.MaxSize == 0 {
		cfg.LLM.Batch.MaxSize = d.LLM.Batch.MaxSize
	}
	if cfg.LLM.Batch.DebounceMS == 0 {
		cfg.LLM.Batch.DebounceMS = d.LLM.Batch.DebounceMS
	}

	if cfg.RateLimiter.MaxConcurrent == 0 {
		cfg.RateLimiter.MaxConcurrent = d.RateLimiter.MaxConcurrent
	}
	if cfg.RateLimiter.BaseDelayMS == 0 {
		cfg.RateLimiter.BaseDelayMS = d.RateLimiter.BaseDelayMS
	}
	if cfg.RateLimiter.MaxDelayMS == 0 {
		cfg.RateLimiter.MaxDelayMS = d.RateLimiter.MaxDelayMS
	}
	if cfg.RateLimiter.CircuitBreaker.FailureThreshold == 0 {
		cfg.RateLimiter.CircuitBreaker.FailureThreshold = d.RateLimiter.CircuitBreaker.FailureThreshold
	}
	if cfg.RateLimiter.CircuitBreaker.RecoveryMS == 0 {
		cfg.RateLimiter.CircuitBreaker.RecoveryMS = d.RateLimiter.CircuitBreaker.RecoveryMS
	}
	if cfg.RateLimiter.CircuitBreaker.HalfOpenAdmitMax == 0 {
		cfg.RateLimiter.CircuitBreaker.HalfOpenAdmitMax = d.RateLimiter.CircuitBreaker.HalfOpenAdmitMax
	}

	if cfg.MCP.InitializeTimeoutMS == 0 {
		cfg.MCP.InitializeTimeoutMS = d.MCP.InitializeTimeoutMS
	}
	if cfg.MCP.ToolCallTimeoutMS == 0 {
		cfg.MCP.ToolCallTimeoutMS = d.MCP.ToolCallTimeoutMS
	}
	if cfg.MCP.ShutdownGraceMS == 0 {
		cfg.MCP.ShutdownGraceMS = d.MCP.ShutdownGraceMS
	}
	if cfg.MCP.DedupeWindowMS == 0 {
		cfg.MCP.DedupeWindowMS = d.MCP.DedupeWindowMS
	}

	if cfg.Inspection.Mode == "" {
		cfg.Inspection.Mode = d.Inspection.Mode
	}
	if cfg.Inspection.MaxRepetitions == 0 {
		cfg.Inspection.MaxRepetitions = d.Inspection.MaxRepetitions
	}
	if cfg.Inspection.HistoryWindow == 0 {
		cfg.Inspection.HistoryWindow = d.Inspection.HistoryWindow
	}

	if cfg.Workflow.MaxAttemptsPerItem == 0 {
		cfg.Workflow.MaxAttemptsPerItem = d.Workflow.MaxAttemptsPerItem
	}
	if cfg.Workflow.ParallelItems == 0 {
		cfg.Workflow.ParallelItems = d.Workflow.ParallelItems
	}
	if cfg.Workflow.SelfAnalysisCooldownMS == 0 {
		cfg.Workflow.SelfAnalysisCooldownMS = d.Workflow.SelfAnalysisCooldownMS
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
}

// Validate rejects a config that would make the orchestrator fail open in a
// way the spec forbids (e.g. a provider enabled with no launch command).
func (c *Config) Validate() error {
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint is required")
	}
	if c.Workflow.ParallelItems > 10 {
		return fmt.Errorf("workflow.parallel_items must not exceed 10, got %d", c.Workflow.ParallelItems)
	}
	switch c.Inspection.Mode {
	case InspectionModeChat, InspectionModeTask, InspectionModeAuto:
	default:
		return fmt.Errorf("inspection.mode must be one of chat, task, auto, got %q", c.Inspection.Mode)
	}
	for name, p := range c.Providers {
		if p.Enabled && p.Command == "" {
			return fmt.Errorf("providers.%s: enabled provider requires a command", name)
		}
	}
	return nil
}

// Load reads and decodes a configuration file, applying defaults and running
// Validate before returning.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
