package mcp

import (
	"context"
	"encoding/json"
)

// Transport defines the interface for MCP transports. The core speaks
// exactly one: child-process stdio, line-delimited JSON-RPC 2.0.
type Transport interface {
	// Connect establishes the transport connection.
	Connect(ctx context.Context) error

	// Close closes the transport connection.
	Close() error

	// Call sends a request and waits for a response.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Notify sends a notification (no response expected).
	Notify(ctx context.Context, method string, params any) error

	// Events returns a channel for receiving notifications from the server.
	Events() <-chan *JSONRPCNotification

	// Connected returns whether the transport is connected.
	Connected() bool
}

// NewTransport creates the stdio transport for the given server config.
func NewTransport(cfg *ServerConfig) Transport {
	return NewStdioTransport(cfg)
}
