package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// InitTimeout bounds how long a plugin subprocess gets to start and
// complete the MCP handshake, matching the teacher's
// DefaultStdioInitTimeout (internal/mcpserver/client_stdio.go).
const InitTimeout = 10 * time.Second

// mcpConn is the subset of mcpclient.MCPClient (the interface
// client.NewStdioMCPClient's return value satisfies) that a plugin proxy
// actually uses. Declaring it locally, rather than depending on the full
// upstream interface, keeps this package's test doubles to four methods
// instead of the library's whole resources/prompts/ping surface.
type mcpConn interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// client is a stdio-transport MCP client for one plugin subprocess,
// trimmed from the teacher's StdioClient/baseMCPClient
// (internal/mcpserver/client_stdio.go, client_interface.go) down to the
// tools surface: a plugin proxies tools into this repo's
// internal/toolregistry.Registry, which has no resources/prompts concept.
type client struct {
	name string

	mu        sync.RWMutex
	conn      mcpConn
	connected bool
}

func newClient(name string) *client {
	return &client{name: name}
}

// start launches the subprocess named command with args/env and performs
// the MCP initialize handshake.
func (c *client) start(ctx context.Context, command string, args []string, env map[string]string) error {
	var envStrings []string
	for k, v := range env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	conn, err := mcpclient.NewStdioMCPClient(command, envStrings, args...)
	if err != nil {
		return fmt.Errorf("plugin %s: start subprocess: %w", c.name, err)
	}

	return c.attach(ctx, conn, command)
}

// attach performs the MCP initialize handshake over an already-constructed
// connection and, on success, adopts it as this client's active
// connection. Split out from start so the handshake/listTools/callTool
// logic can be exercised against a fake mcpConn without spawning a real
// subprocess.
func (c *client) attach(ctx context.Context, conn mcpConn, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, InitTimeout)
		defer cancel()
	}

	_, err := conn.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo:      mcp.Implementation{Name: "mcpserver-plugin-host", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		closeErr := conn.Close()
		if closeErr != nil {
			logging.Debug("PluginClient", "error closing failed plugin %s: %v", c.name, closeErr)
		}
		return fmt.Errorf("plugin %s: MCP handshake failed: %w", c.name, err)
	}

	c.conn = conn
	c.connected = true
	logging.Info("PluginClient", "plugin %s connected over stdio (%s)", c.name, label)
	return nil
}

func (c *client) listTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, fmt.Errorf("plugin %s: not connected", c.name)
	}
	result, err := c.conn.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("plugin %s: list tools: %w", c.name, err)
	}
	return result.Tools, nil
}

func (c *client) callTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, fmt.Errorf("plugin %s: not connected", c.name)
	}
	result, err := c.conn.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("plugin %s: call tool %s: %w", c.name, name, err)
	}
	return result, nil
}

func (c *client) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	err := c.conn.Close()
	c.connected = false
	c.conn = nil
	return err
}
