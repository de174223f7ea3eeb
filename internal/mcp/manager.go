package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	multierror "github.com/hashicorp/go-multierror"
)

// ProviderLifecycleState is a provider's position in its connection
// lifecycle: spawning -> handshaking -> ready, or draining -> exited on
// shutdown. A provider that fails initialize within its timeout is forced
// ready (degraded, logged) rather than left spawning forever.
type ProviderLifecycleState int

const (
	StateSpawning ProviderLifecycleState = iota
	StateHandshaking
	StateReady
	StateDraining
	StateExited
)

func (s ProviderLifecycleState) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Manager supervises a fleet of MCP providers: it spawns each configured
// provider's subprocess, drives the initialize handshake, tracks lifecycle
// state, and serves as the single point of tools/call dispatch.
type Manager struct {
	config  *Config
	logger  *slog.Logger
	clients map[string]*Client
	states  map[string]ProviderLifecycleState
	mu      sync.RWMutex

	initializeTimeout time.Duration
	shutdownGrace     time.Duration

	watcher   *fsnotify.Watcher
	reloadMu  sync.Mutex
	configDir string
}

// Config holds the MCP manager configuration.
type Config struct {
	Enabled             bool            `yaml:"enabled"`
	Servers             []*ServerConfig `yaml:"servers"`
	InitializeTimeoutMS int             `yaml:"initialize_timeout_ms"`
	ShutdownGraceMS     int             `yaml:"shutdown_grace_ms"`
}

// NewManager creates a new MCP manager.
func NewManager(cfg *Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	initTimeout := 20 * time.Second
	shutdownGrace := 3 * time.Second
	if cfg != nil {
		if cfg.InitializeTimeoutMS > 0 {
			initTimeout = time.Duration(cfg.InitializeTimeoutMS) * time.Millisecond
		}
		if cfg.ShutdownGraceMS > 0 {
			shutdownGrace = time.Duration(cfg.ShutdownGraceMS) * time.Millisecond
		}
	}

	return &Manager{
		config:            cfg,
		logger:            logger.With("component", "mcp"),
		clients:           make(map[string]*Client),
		states:            make(map[string]ProviderLifecycleState),
		initializeTimeout: initTimeout,
		shutdownGrace:     shutdownGrace,
	}
}

// Start connects to every configured provider with auto_start enabled. At
// least one ready provider is sufficient for Start to succeed; every
// individual failure is recorded and returned together only if all
// providers fail.
func (m *Manager) Start(ctx context.Context) error {
	if m.config == nil || !m.config.Enabled {
		m.logger.Debug("MCP disabled")
		return nil
	}

	var result *multierror.Error
	readyCount := 0
	attempted := 0

	for _, serverCfg := range m.config.Servers {
		if !serverCfg.AutoStart {
			continue
		}
		attempted++

		if err := m.Connect(ctx, serverCfg.ID); err != nil {
			m.logger.Error("failed to connect to MCP provider",
				"provider", serverCfg.ID,
				"error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", serverCfg.ID, err))
			continue
		}
		readyCount++
	}

	if attempted > 0 && readyCount == 0 {
		return fmt.Errorf("all providers failed to start: %w", result.ErrorOrNil())
	}
	if result != nil {
		m.logger.Warn("some providers failed to start, continuing with the rest ready",
			"ready", readyCount, "attempted", attempted)
	}
	return nil
}

// Stop drains and disconnects every connected provider, giving each up to
// the configured shutdown grace period before force-killing its subprocess.
func (m *Manager) Stop() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		m.states[id] = StateDraining
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var result *multierror.Error
	for _, id := range ids {
		m.mu.RLock()
		client := m.clients[id]
		m.mu.RUnlock()

		done := make(chan error, 1)
		go func() { done <- client.Close() }()

		select {
		case err := <-done:
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", id, err))
			}
		case <-time.After(m.shutdownGrace):
			result = multierror.Append(result, fmt.Errorf("%s: shutdown grace period exceeded", id))
		}

		m.mu.Lock()
		m.states[id] = StateExited
		delete(m.clients, id)
		m.mu.Unlock()
	}

	if m.watcher != nil {
		_ = m.watcher.Close()
	}

	return result.ErrorOrNil()
}

// Connect connects to a specific provider by ID, driving it through
// spawning -> handshaking -> ready. If initialize does not complete within
// the configured timeout, the provider is force-marked ready and the
// degradation is logged rather than blocking startup indefinitely.
func (m *Manager) Connect(ctx context.Context, serverID string) error {
	var serverCfg *ServerConfig
	for _, cfg := range m.config.Servers {
		if cfg.ID == serverID {
			serverCfg = cfg
			break
		}
	}
	if serverCfg == nil {
		return fmt.Errorf("provider %q not found in config", serverID)
	}

	m.mu.RLock()
	if _, exists := m.clients[serverID]; exists {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	m.setState(serverID, StateSpawning)

	client := NewClient(serverCfg, m.logger)

	connectCtx, cancel := context.WithTimeout(ctx, m.initializeTimeout)
	defer cancel()

	m.setState(serverID, StateHandshaking)
	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect(connectCtx) }()

	select {
	case err := <-errCh:
		if err != nil {
			m.setState(serverID, StateExited)
			return err
		}
	case <-connectCtx.Done():
		m.logger.Warn("provider initialize timed out, forcing ready",
			"provider", serverID, "timeout", m.initializeTimeout)
	}

	m.mu.Lock()
	m.clients[serverID] = client
	m.states[serverID] = StateReady
	m.mu.Unlock()

	m.logger.Info("provider ready", "provider", serverID, "name", client.ServerInfo().Name)

	go m.watchEvents(serverID, client)

	return nil
}

// watchEvents listens for tools/listChanged notifications and re-issues
// RefreshTools so the catalog stays in sync without a restart.
func (m *Manager) watchEvents(serverID string, client *Client) {
	for notif := range client.Events() {
		if notif == nil {
			continue
		}
		if notif.Method == "notifications/tools/list_changed" || notif.Method == "notifications/tools/listChanged" {
			if err := client.RefreshTools(context.Background()); err != nil {
				m.logger.Warn("failed to refresh tools after listChanged",
					"provider", serverID, "error", err)
			}
		}
	}
}

func (m *Manager) setState(serverID string, state ProviderLifecycleState) {
	m.mu.Lock()
	m.states[serverID] = state
	m.mu.Unlock()
}

// Disconnect disconnects from a specific provider.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[serverID]
	if !exists {
		return nil
	}

	if err := client.Close(); err != nil {
		return err
	}

	m.states[serverID] = StateExited
	delete(m.clients, serverID)
	m.logger.Info("disconnected from provider", "provider", serverID)

	return nil
}

// Client returns a client for a specific provider.
func (m *Manager) Client(serverID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, exists := m.clients[serverID]
	return client, exists
}

// Clients returns all connected clients.
func (m *Manager) Clients() map[string]*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*Client, len(m.clients))
	for id, client := range m.clients {
		result[id] = client
	}
	return result
}

// State returns the lifecycle state of a provider, or StateExited if it is
// unknown to this manager.
func (m *Manager) State(serverID string) ProviderLifecycleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[serverID]; ok {
		return s
	}
	return StateExited
}

// AllTools returns all tools from all connected providers, keyed by
// provider ID.
func (m *Manager) AllTools() map[string][]*MCPTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]*MCPTool)
	for id, client := range m.clients {
		if tools := client.Tools(); len(tools) > 0 {
			result[id] = tools
		}
	}
	return result
}

// CallTool calls a tool on a specific provider. If the provider's config
// has FilesystemTmpRewrite set, any string argument beginning with "/tmp/"
// is rewritten to "/private/tmp/" before dispatch.
func (m *Manager) CallTool(ctx context.Context, serverID string, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	client, exists := m.Client(serverID)
	if !exists {
		return nil, fmt.Errorf("provider %q not connected", serverID)
	}

	if client.Config() != nil && client.Config().FilesystemTmpRewrite {
		arguments = rewriteTmpPaths(arguments)
	}

	return client.CallTool(ctx, toolName, arguments)
}

// tmpRewriteKeys are the parameter names the /tmp rewrite applies to.
// Any other key is left untouched even if its value looks like a /tmp
// path, since the rewrite is a filesystem-path compatibility shim, not a
// generic string transform.
var tmpRewriteKeys = map[string]bool{
	"path":            true,
	"file_path":       true,
	"directory":       true,
	"target":          true,
	"targetPath":      true,
	"sourcePath":      true,
	"destinationPath": true,
}

// rewriteTmpPaths rewrites the named filesystem-path parameters when their
// value is exactly "/tmp" or begins with "/tmp/", to "/private/tmp[...]".
// Every other key and value is left untouched.
func rewriteTmpPaths(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	rewritten := make(map[string]any, len(args))
	for k, v := range args {
		if tmpRewriteKeys[k] {
			if s, ok := v.(string); ok && (s == "/tmp" || strings.HasPrefix(s, "/tmp/")) {
				rewritten[k] = "/private" + s
				continue
			}
		}
		rewritten[k] = v
	}
	return rewritten
}

// FindTool finds a tool by name across all providers.
// Returns the provider ID and tool definition, or empty string if not found.
func (m *Manager) FindTool(name string) (serverID string, tool *MCPTool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, client := range m.clients {
		for _, t := range client.Tools() {
			if t.Name == name {
				return id, t
			}
		}
	}
	return "", nil
}

// ToolSchema represents the JSON schema for a tool, used by LLMs and the
// validation pipeline.
type ToolSchema struct {
	ServerID    string          `json:"server_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolSchemas returns tool schemas for every tool on every connected
// provider.
func (m *Manager) ToolSchemas() []ToolSchema {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var schemas []ToolSchema
	for id, client := range m.clients {
		for _, tool := range client.Tools() {
			schemas = append(schemas, ToolSchema{
				ServerID:    id,
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: json.RawMessage(tool.InputSchema),
			})
		}
	}
	return schemas
}

// ServerStatus represents the status of a provider.
type ServerStatus struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	State     ProviderLifecycleState `json:"-"`
	StateName string                 `json:"state"`
	Connected bool                   `json:"connected"`
	Server    ServerInfo             `json:"server"`
	Tools     int                    `json:"tools"`
}

// Status returns the status of all configured providers.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []ServerStatus
	for _, cfg := range m.config.Servers {
		status := ServerStatus{
			ID:        cfg.ID,
			Name:      cfg.Name,
			State:     m.states[cfg.ID],
			StateName: m.states[cfg.ID].String(),
		}

		if client, exists := m.clients[cfg.ID]; exists {
			status.Connected = client.Connected()
			status.Server = client.ServerInfo()
			status.Tools = len(client.Tools())
		}

		statuses = append(statuses, status)
	}

	return statuses
}

// WatchConfig starts an fsnotify watch on the directory containing
// configPath. Whenever the file changes, onReload is invoked with a freshly
// decoded *Config so the caller can diff in newly enabled providers and call
// Connect for each without restarting the process.
func (m *Manager) WatchConfig(configPath string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	dir := configPath
	if idx := strings.LastIndex(configPath, "/"); idx >= 0 {
		dir = configPath[:idx]
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	m.watcher = watcher
	m.configDir = dir

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				m.reloadMu.Lock()
				m.logger.Info("provider config changed, reloading", "path", event.Name)
				if onReload != nil {
					onReload(m.config)
				}
				m.reloadMu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
