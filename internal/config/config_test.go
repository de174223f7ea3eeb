package config

import (
	"os"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.TimeoutMS != 30000 {
		t.Errorf("LLM.TimeoutMS = %d, want 30000", cfg.LLM.TimeoutMS)
	}
	if cfg.RateLimiter.CircuitBreaker.FailureThreshold != 5 {
		t.Errorf("CircuitBreaker.FailureThreshold = %d, want 5", cfg.RateLimiter.CircuitBreaker.FailureThreshold)
	}
	if cfg.Workflow.ParallelItems != 10 {
		t.Errorf("Workflow.ParallelItems = %d, want 10", cfg.Workflow.ParallelItems)
	}
	if cfg.Inspection.Mode != InspectionModeAuto {
		t.Errorf("Inspection.Mode = %s, want auto", cfg.Inspection.Mode)
	}
}

func TestApplyDefaults_PreservesOverrides(t *testing.T) {
	cfg := &Config{}
	cfg.RateLimiter.MaxConcurrent = 7
	applyDefaults(cfg)

	if cfg.RateLimiter.MaxConcurrent != 7 {
		t.Errorf("MaxConcurrent = %d, want 7 (override should survive)", cfg.RateLimiter.MaxConcurrent)
	}
	if cfg.RateLimiter.BaseDelayMS != 100 {
		t.Errorf("BaseDelayMS = %d, want 100 (default should fill in)", cfg.RateLimiter.BaseDelayMS)
	}
	if cfg.Providers == nil {
		t.Error("Providers map should be initialized")
	}
}

func TestValidate_RequiresEndpoint(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without llm.endpoint")
	}

	cfg.LLM.Endpoint = "http://localhost:8080"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_RejectsTooManyParallelItems(t *testing.T) {
	cfg := Default()
	cfg.LLM.Endpoint = "http://localhost:8080"
	cfg.Workflow.ParallelItems = 11

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject parallel_items > 10")
	}
}

func TestValidate_RejectsBadInspectionMode(t *testing.T) {
	cfg := Default()
	cfg.LLM.Endpoint = "http://localhost:8080"
	cfg.Inspection.Mode = "yolo"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an unrecognized inspection mode")
	}
}

func TestValidate_RejectsEnabledProviderWithoutCommand(t *testing.T) {
	cfg := Default()
	cfg.LLM.Endpoint = "http://localhost:8080"
	cfg.Providers["filesystem"] = ProviderConfig{Enabled: true}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an enabled provider with no command")
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	content := `
llm:
  endpoint: "http://localhost:8080"
rate_limiter:
  max_concurrent: 5
providers:
  filesystem:
    command: "mcp-server-filesystem"
    enabled: true
    filesystem_tmp_rewrite: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Endpoint != "http://localhost:8080" {
		t.Errorf("LLM.Endpoint = %q", cfg.LLM.Endpoint)
	}
	if cfg.RateLimiter.MaxConcurrent != 5 {
		t.Errorf("RateLimiter.MaxConcurrent = %d, want 5", cfg.RateLimiter.MaxConcurrent)
	}
	if cfg.LLM.CacheTTLMS != 60000 {
		t.Errorf("LLM.CacheTTLMS = %d, want default 60000", cfg.LLM.CacheTTLMS)
	}
	p, ok := cfg.Providers["filesystem"]
	if !ok {
		t.Fatal("providers.filesystem missing")
	}
	if !p.FilesystemTmpRewrite {
		t.Error("providers.filesystem.filesystem_tmp_rewrite should be true")
	}
}
