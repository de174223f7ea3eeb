// Package main provides the CLI entry point for orchestratord, the
// multi-agent task orchestrator.
//
// orchestratord supervises a fleet of MCP tool providers, validates and
// dispatches planned tool calls through a policy-aware inspection
// pipeline, optimizes outbound LLM requests, and drives chat/task/dev
// sessions through the workflow engine.
//
// # Basic Usage
//
// Start the server:
//
//	orchestratord serve --config orchestrator.yaml
//
// Check configuration validity:
//
//	orchestratord validate-config --config orchestrator.yaml
//
// # Environment Variables
//
//   - ORCHESTRATOR_CONFIG: path to the configuration file
//   - LLM_API_KEY: API key for the configured LLM backend
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaycore/orchestrator/internal/availability"
	"github.com/relaycore/orchestrator/internal/catalog"
	"github.com/relaycore/orchestrator/internal/config"
	"github.com/relaycore/orchestrator/internal/container"
	"github.com/relaycore/orchestrator/internal/dispatch"
	"github.com/relaycore/orchestrator/internal/history"
	"github.com/relaycore/orchestrator/internal/inspect"
	"github.com/relaycore/orchestrator/internal/llmopt"
	"github.com/relaycore/orchestrator/internal/mcp"
	"github.com/relaycore/orchestrator/internal/models"
	"github.com/relaycore/orchestrator/internal/observability"
	"github.com/relaycore/orchestrator/internal/ratelimit"
	"github.com/relaycore/orchestrator/internal/retry"
	"github.com/relaycore/orchestrator/internal/runtime"
	"github.com/relaycore/orchestrator/internal/tools/policy"
	"github.com/relaycore/orchestrator/internal/validate"
	"github.com/relaycore/orchestrator/internal/workflow"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "orchestratord",
		Short:        "orchestratord - multi-agent task orchestrator",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	root.AddCommand(
		buildServeCmd(),
		buildValidateConfigCmd(),
		buildStatusCmd(),
	)
	return root
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator",
		Long: `Start the orchestrator with its full component graph:

1. Config values and rate limiter
2. Model-availability checker
3. LLM request optimizer
4. MCP provider supervisor
5. Tool catalog
6. Inspectors and validation pipeline
7. Dispatcher
8. Stage processors (planner, executor, verifier, replanner)
9. Workflow engine
10. Service container binding all of the above

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "orchestrator.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("ORCHESTRATOR_CONFIG"); env != "" {
		return env
	}
	return "orchestrator.yaml"
}

// runServe loads configuration, wires the full component graph through
// the service container, and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	slog.Info("starting orchestratord", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	obsLogger := observability.NewLogger(observability.LogConfig{Level: levelString(debug), Format: "json"})
	metrics := observability.NewMetrics()
	_ = obsLogger
	_ = metrics

	c := container.New(slog.Default())
	if err := registerComponents(c, cfg); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	slog.Info("orchestratord started")
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping components")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := c.Stop(stopCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
		return err
	}
	return nil
}

func levelString(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}

// registerComponents registers every orchestrator component against the
// container in spec dependency order: config/rate-limiter, availability,
// LLM optimizer, provider supervisor, catalog, inspectors/pipeline,
// dispatcher, stage processors, workflow engine.
func registerComponents(c *container.Container, cfg *config.Config) error {
	if err := c.Register("rate_limiter", func(deps container.Deps) (any, error) {
		return ratelimit.New(ratelimit.Config{
			MaxConcurrent:    cfg.RateLimiter.MaxConcurrent,
			BaseDelayMS:      cfg.RateLimiter.BaseDelayMS,
			MaxDelayMS:       cfg.RateLimiter.MaxDelayMS,
			FailureThreshold: cfg.RateLimiter.CircuitBreaker.FailureThreshold,
			RecoveryMS:       cfg.RateLimiter.CircuitBreaker.RecoveryMS,
			HalfOpenAdmitMax: cfg.RateLimiter.CircuitBreaker.HalfOpenAdmitMax,
		}), nil
	}, container.RegisterOptions{
		Singleton: true,
		Hooks: container.Hooks{OnStop: func(ctx context.Context, instance any) error {
			instance.(*ratelimit.Limiter).Close()
			return nil
		}},
	}); err != nil {
		return err
	}

	if err := c.Register("chat_client", func(deps container.Deps) (any, error) {
		return runtime.NewChatClient(cfg.LLM.Endpoint, os.Getenv("LLM_API_KEY"), "", cfg.LLM.Fallbacks), nil
	}, container.RegisterOptions{Singleton: true}); err != nil {
		return err
	}

	if err := c.Register("availability", func(deps container.Deps) (any, error) {
		chat := container.Get[*runtime.ChatClient](deps, "chat_client")
		lister := runtime.NewModelLister(models.NewCatalog(), modelRoster(cfg))
		prober := runtime.NewProber(chat)
		return availability.NewChecker(lister, prober, availability.DefaultConfig()), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"chat_client"}}); err != nil {
		return err
	}

	if err := c.Register("llm_optimizer", func(deps container.Deps) (any, error) {
		chat := container.Get[*runtime.ChatClient](deps, "chat_client")
		avail := container.Get[*availability.Checker](deps, "availability")
		selector := llmopt.NewSelector(llmopt.PreferredModels{}, modelRoster(cfg), avail)
		optCfg := llmopt.DefaultConfig()
		optCfg.Cache.TTL = time.Duration(cfg.LLM.CacheTTLMS) * time.Millisecond
		optCfg.Cache.MaxSize = cfg.LLM.CacheCapacity
		optCfg.MaxBatchSize = cfg.LLM.Batch.MaxSize
		optCfg.Debounce = time.Duration(cfg.LLM.Batch.DebounceMS) * time.Millisecond
		return llmopt.NewOptimizer(chat, selector, optCfg), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"chat_client", "availability"}}); err != nil {
		return err
	}

	if err := c.Register("mcp_manager", func(deps container.Deps) (any, error) {
		servers := make([]*mcp.ServerConfig, 0, len(cfg.Providers))
		for name, p := range cfg.Providers {
			servers = append(servers, &mcp.ServerConfig{
				ID:        name,
				Name:      name,
				Transport: mcp.TransportStdio,
				Command:   p.Command,
				Args:      p.Args,
				Env:       p.Env,
				AutoStart: p.Enabled,
			})
		}
		manager := mcp.NewManager(&mcp.Config{
			Enabled:             true,
			Servers:             servers,
			InitializeTimeoutMS: cfg.MCP.InitializeTimeoutMS,
			ShutdownGraceMS:     cfg.MCP.ShutdownGraceMS,
		}, slog.Default())
		return manager, nil
	}, container.RegisterOptions{
		Singleton: true,
		Hooks: container.Hooks{
			OnStart: func(ctx context.Context, instance any) error {
				return instance.(*mcp.Manager).Start(ctx)
			},
			OnStop: func(ctx context.Context, instance any) error {
				return instance.(*mcp.Manager).Stop()
			},
		},
	}); err != nil {
		return err
	}

	if err := c.Register("catalog", func(deps container.Deps) (any, error) {
		cat := catalog.New()
		manager := container.Get[*mcp.Manager](deps, "mcp_manager")
		cat.Rebuild(manager.AllTools())
		return cat, nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"mcp_manager"}}); err != nil {
		return err
	}

	if err := c.Register("history", func(deps container.Deps) (any, error) {
		return history.New(cfg.Inspection.HistoryWindow), nil
	}, container.RegisterOptions{Singleton: true}); err != nil {
		return err
	}

	if err := c.Register("provider_states", func(deps container.Deps) (any, error) {
		return runtime.NewManagerStates(container.Get[*mcp.Manager](deps, "mcp_manager")), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"mcp_manager"}}); err != nil {
		return err
	}

	if err := c.Register("validation_pipeline", func(deps container.Deps) (any, error) {
		cat := container.Get[*catalog.Catalog](deps, "catalog")
		hist := container.Get[*history.Session](deps, "history")
		states := container.Get[*runtime.ManagerStates](deps, "provider_states")
		return validate.DefaultPipeline(cat, hist, states, cfg.Inspection.MaxRepetitions, cfg.Inspection.MaxRepetitions), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"catalog", "history", "provider_states"}}); err != nil {
		return err
	}

	if err := c.Register("inspector_chain", func(deps container.Deps) (any, error) {
		mode := inspect.ModeAuto
		switch cfg.Inspection.Mode {
		case config.InspectionModeChat:
			mode = inspect.ModeChat
		case config.InspectionModeTask:
			mode = inspect.ModeTask
		}
		resolver := policy.NewResolver()
		toolPolicy := policy.NewPolicy(policy.ProfileFull)
		return inspect.NewChain(
			inspect.NewSecurityInspector(),
			inspect.NewModeInspector(mode, false),
			inspect.NewPolicyInspector(resolver, toolPolicy),
			inspect.NewRepetitionInspector(cfg.Inspection.HistoryWindow, cfg.Inspection.MaxRepetitions, false),
		), nil
	}, container.RegisterOptions{Singleton: true}); err != nil {
		return err
	}

	if err := c.Register("dispatcher", func(deps container.Deps) (any, error) {
		manager := container.Get[*mcp.Manager](deps, "mcp_manager")
		hist := container.Get[*history.Session](deps, "history")
		dispatchCfg := dispatch.DefaultConfig()
		dispatchCfg.CallDeadline = time.Duration(cfg.MCP.ToolCallTimeoutMS) * time.Millisecond
		dispatchCfg.DedupeWindow = time.Duration(cfg.MCP.DedupeWindowMS) * time.Millisecond
		return dispatch.New(manager, hist, dispatchCfg), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"mcp_manager", "history"}}); err != nil {
		return err
	}

	if err := c.Register("pipeline_dispatcher", func(deps container.Deps) (any, error) {
		pipeline := container.Get[*validate.Pipeline](deps, "validation_pipeline")
		chain := container.Get[*inspect.Chain](deps, "inspector_chain")
		disp := container.Get[*dispatch.Dispatcher](deps, "dispatcher")
		hist := container.Get[*history.Session](deps, "history")
		return runtime.NewPipelineDispatcher(pipeline, chain, disp, hist), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"validation_pipeline", "inspector_chain", "dispatcher", "history"}}); err != nil {
		return err
	}

	if err := c.Register("stages", func(deps container.Deps) (any, error) {
		return runtime.NewStages(container.Get[*llmopt.Optimizer](deps, "llm_optimizer")), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"llm_optimizer"}}); err != nil {
		return err
	}

	return c.Register("workflow_engine", func(deps container.Deps) (any, error) {
		stages := container.Get[*runtime.Stages](deps, "stages")
		pipelineDispatcher := container.Get[*runtime.PipelineDispatcher](deps, "pipeline_dispatcher")
		engineCfg := workflow.DefaultConfig()
		engineCfg.MaxAttemptsPerItem = cfg.Workflow.MaxAttemptsPerItem
		engineCfg.ParallelItems = cfg.Workflow.ParallelItems
		engineCfg.SelfAnalysisCooldown = time.Duration(cfg.Workflow.SelfAnalysisCooldownMS) * time.Millisecond
		engineCfg.CallRetry = retry.DefaultConfig()
		return workflow.New(workflow.Deps{
			ModeSelector: stages,
			Chat:         stages,
			Builder:      stages,
			Planner:      stages,
			Dispatcher:   pipelineDispatcher,
			Verifier:     stages,
			Replanner:    stages,
			Summarizer:   stages,
		}, engineCfg), nil
	}, container.RegisterOptions{Singleton: true, Dependencies: []string{"stages", "pipeline_dispatcher"}})
}

func modelRoster(cfg *config.Config) []string {
	roster := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		roster = append(roster, name)
	}
	if len(roster) == 0 {
		return []string{"gpt-4o-mini"}
	}
	return roster
}

func buildValidateConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPath))
			if err != nil {
				return err
			}
			fmt.Printf("config valid: llm.endpoint=%s workflow.parallel_items=%d providers=%d\n",
				cfg.LLM.Endpoint, cfg.Workflow.ParallelItems, len(cfg.Providers))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "orchestrator.yaml", "Path to YAML configuration file")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show orchestrator version and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPath))
			if err != nil {
				return err
			}
			fmt.Printf("orchestratord %s (commit %s, built %s)\n", version, commit, date)
			fmt.Printf("providers configured: %d\n", len(cfg.Providers))
			fmt.Printf("workflow: max_attempts=%d parallel_items=%d\n", cfg.Workflow.MaxAttemptsPerItem, cfg.Workflow.ParallelItems)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "orchestrator.yaml", "Path to YAML configuration file")
	return cmd
}
