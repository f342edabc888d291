package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpkit/mcpserver/internal/toolregistry"
	"github.com/mcpkit/mcpserver/internal/workflow"
)

// protocolVersion is the MCP wire version this transport speaks, returned
// from the initialize handshake.
const protocolVersion = "2025-03-26"

// Dispatcher routes an incoming JSON-RPC method to the Tool Registry or the
// Workflow Engine, per spec sections 4.9/4.10. A tool name not found in the
// registry is tried against the Workflow Manager, mirroring
// internal/plugin's uniform treatment of tools and workflows as callable-
// by-name - there is no separate "workflows/call" wire method.
type Dispatcher struct {
	registry  *toolregistry.Registry
	workflows *workflow.Manager
	executor  *workflow.Executor
}

// NewDispatcher builds a Dispatcher. workflows/executor may be nil when the
// host application has no Workflow Engine wired in.
func NewDispatcher(registry *toolregistry.Registry, workflows *workflow.Manager, executor *workflow.Executor) *Dispatcher {
	return &Dispatcher{registry: registry, workflows: workflows, executor: executor}
}

// callToolParams is the params shape of a tools/call request.
type callToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Dispatch executes method with params and returns a JSON-serializable
// result, or a JSON-RPC error code/message on failure. requestID threads
// through to toolregistry.Registry.InvokeTool for correlation.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage, requestID string) (interface{}, int, string) {
	switch method {
	case "initialize":
		return map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      map[string]interface{}{"name": "mcpserver", "version": "1.0.0"},
		}, 0, ""

	case "tools/list":
		return map[string]interface{}{"tools": d.registry.MCPTools()}, 0, ""

	case "tools/call":
		var p callToolParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, rpcInvalidParams, fmt.Sprintf("invalid tools/call params: %s", err)
		}
		if p.Name == "" {
			return nil, rpcInvalidParams, "tools/call: name is required"
		}
		result, err := d.callByName(ctx, p.Name, p.Arguments, requestID)
		if err != nil {
			return nil, rpcMethodNotFound, err.Error()
		}
		return result, 0, ""

	default:
		return nil, rpcMethodNotFound, fmt.Sprintf("unknown method %q", method)
	}
}

// callByName tries the Tool Registry first, then falls back to the
// Workflow Manager by the same name.
func (d *Dispatcher) callByName(ctx context.Context, name string, args map[string]interface{}, requestID string) (*mcp.CallToolResult, error) {
	if result, err := d.registry.InvokeTool(ctx, name, args, requestID); err == nil {
		return result, nil
	}

	if d.workflows == nil || d.executor == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	wf, err := d.workflows.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	result, err := d.executor.Execute(ctx, wf, args, requestID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: marshal result: %w", name, err)
	}
	return mcp.NewToolResultText(string(encoded)), nil
}
