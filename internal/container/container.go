// Package container is the service container / lifecycle manager: it
// builds every component in the orchestrator under explicit dependency
// edges and runs a two-phase lifecycle (init, then start) plus a
// reverse-order stop.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
)

// Deps is the set of already-resolved dependency instances handed to a
// Factory, keyed by registered name.
type Deps map[string]any

// Get type-asserts a dependency by name, panicking if it is missing or
// of the wrong type — a programming error a factory should never need
// to recover from, since Register validates dependency names exist.
func Get[T any](deps Deps, name string) T {
	v, ok := deps[name]
	if !ok {
		panic(fmt.Sprintf("container: dependency %q not resolved", name))
	}
	typed, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("container: dependency %q is not of the requested type", name))
	}
	return typed
}

// Factory builds one component given its already-resolved dependencies.
type Factory func(deps Deps) (any, error)

// Hooks are the lifecycle callbacks a registration may declare. Any may
// be nil.
type Hooks struct {
	OnInit  func(ctx context.Context, instance any) error
	OnStart func(ctx context.Context, instance any) error
	OnStop  func(ctx context.Context, instance any) error
}

// RegisterOptions configures one registration.
type RegisterOptions struct {
	Singleton    bool
	Dependencies []string
	Hooks        Hooks
	// Override allows replacing an existing registration outright. Without
	// it, re-registering a name is only permitted when the existing entry
	// is an already-resolved singleton (an idempotent no-op).
	Override bool
}

type entry struct {
	name         string
	factory      Factory
	singleton    bool
	dependencies []string
	hooks        Hooks

	resolved  bool
	resolving bool
	instance  any
}

// Container is the registry and lifecycle driver.
type Container struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
}

// New creates an empty container.
func New(logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		entries: make(map[string]*entry),
		logger:  logger.With("component", "container"),
	}
}

// Register adds a component under name. Re-registering an existing,
// already-resolved singleton is a no-op unless Override is set, in
// which case the prior registration (and any resolved instance) is
// replaced outright. Re-registering anything else without Override is
// an error.
func (c *Container) Register(name string, factory Factory, opts RegisterOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[name]; ok {
		switch {
		case opts.Override:
			// fall through to replace below.
		case existing.singleton && existing.resolved:
			return nil
		default:
			return fmt.Errorf("container: %q is already registered", name)
		}
	} else {
		c.order = append(c.order, name)
	}

	for _, dep := range opts.Dependencies {
		if dep == name {
			return fmt.Errorf("container: %q cannot depend on itself", name)
		}
	}

	c.entries[name] = &entry{
		name:         name,
		factory:      factory,
		singleton:    opts.Singleton,
		dependencies: opts.Dependencies,
		hooks:        opts.Hooks,
	}
	return nil
}

// Resolve builds (or returns the cached singleton instance of) the
// named component, resolving its dependency graph first. Cycles are
// detected and reported with the full offending chain.
func (c *Container) Resolve(name string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(name, nil)
}

func (c *Container) resolveLocked(name string, chain []string) (any, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("container: %q is not registered", name)
	}
	if e.singleton && e.resolved {
		return e.instance, nil
	}
	if e.resolving {
		full := append(append([]string{}, chain...), name)
		return nil, fmt.Errorf("container: dependency cycle: %s", strings.Join(full, " -> "))
	}

	e.resolving = true
	defer func() { e.resolving = false }()

	nextChain := append(append([]string{}, chain...), name)
	deps := make(Deps, len(e.dependencies))
	for _, dep := range e.dependencies {
		instance, err := c.resolveLocked(dep, nextChain)
		if err != nil {
			return nil, err
		}
		deps[dep] = instance
	}

	instance, err := e.factory(deps)
	if err != nil {
		return nil, fmt.Errorf("container: building %q: %w", name, err)
	}

	if e.singleton {
		e.instance = instance
		e.resolved = true
	}
	return instance, nil
}

// Initialize resolves every singleton, then invokes each registration's
// OnInit hook in registration order.
func (c *Container) Initialize(ctx context.Context) error {
	c.mu.Lock()
	names := append([]string{}, c.order...)
	c.mu.Unlock()

	for _, name := range names {
		c.mu.Lock()
		e := c.entries[name]
		c.mu.Unlock()
		if e.singleton {
			if _, err := c.Resolve(name); err != nil {
				return err
			}
		}
	}

	for _, name := range names {
		c.mu.Lock()
		e := c.entries[name]
		c.mu.Unlock()
		if e.hooks.OnInit == nil {
			continue
		}
		instance, err := c.Resolve(name)
		if err != nil {
			return err
		}
		if err := e.hooks.OnInit(ctx, instance); err != nil {
			return fmt.Errorf("container: on_init %q: %w", name, err)
		}
		c.logger.Debug("initialized component", "name", name)
	}
	return nil
}

// Start invokes each registration's OnStart hook in registration order.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	names := append([]string{}, c.order...)
	c.mu.Unlock()

	for _, name := range names {
		c.mu.Lock()
		e := c.entries[name]
		c.mu.Unlock()
		if e.hooks.OnStart == nil {
			continue
		}
		instance, err := c.Resolve(name)
		if err != nil {
			return err
		}
		if err := e.hooks.OnStart(ctx, instance); err != nil {
			return fmt.Errorf("container: on_start %q: %w", name, err)
		}
		c.logger.Debug("started component", "name", name)
	}
	return nil
}

// Stop invokes each registration's OnStop hook in reverse registration
// order, logging (rather than aborting on) individual hook errors so
// every component gets a chance to release its resources.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	names := append([]string{}, c.order...)
	c.mu.Unlock()

	var result *multierror.Error
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		c.mu.Lock()
		e := c.entries[name]
		c.mu.Unlock()
		if e.hooks.OnStop == nil || !e.resolved {
			continue
		}
		if err := e.hooks.OnStop(ctx, e.instance); err != nil {
			c.logger.Error("error stopping component", "name", name, "error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}
