package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/internal/toolregistry"
	"github.com/mcpkit/mcpserver/internal/workflow"
)

func newTestRegistry(t *testing.T) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, r.RegisterTool(toolregistry.Definition{
		Name: "echo",
		Mode: toolregistry.ModeNative,
		Handler: func(ctx context.Context, args map[string]interface{}, extra toolregistry.Extra) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("echoed"), nil
		},
	}))
	return r
}

func TestDispatch_Initialize(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), nil, nil)
	result, code, msg := d.Dispatch(context.Background(), "initialize", nil, "req-1")
	require.Equal(t, 0, code, msg)
	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, protocolVersion, m["protocolVersion"])
}

func TestDispatch_ToolsList(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), nil, nil)
	result, code, _ := d.Dispatch(context.Background(), "tools/list", nil, "req-1")
	require.Equal(t, 0, code)
	m := result.(map[string]interface{})
	tools := m["tools"].([]mcp.Tool)
	assert.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestDispatch_ToolsCall_KnownTool(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), nil, nil)
	params, _ := json.Marshal(map[string]interface{}{"name": "echo", "arguments": map[string]interface{}{}})
	result, code, _ := d.Dispatch(context.Background(), "tools/call", params, "req-1")
	require.Equal(t, 0, code)
	callResult := result.(*mcp.CallToolResult)
	assert.False(t, callResult.IsError)
}

func TestDispatch_ToolsCall_UnknownTool(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), nil, nil)
	params, _ := json.Marshal(map[string]interface{}{"name": "nope"})
	_, code, msg := d.Dispatch(context.Background(), "tools/call", params, "req-1")
	assert.Equal(t, rpcMethodNotFound, code)
	assert.Contains(t, msg, "nope")
}

func TestDispatch_ToolsCall_FallsBackToWorkflow(t *testing.T) {
	registry := newTestRegistry(t)
	wfManager := workflow.NewManager(kvstore.NewMemory(0))
	executor := workflow.NewExecutor(registry)

	require.NoError(t, wfManager.Register(context.Background(), &workflow.Workflow{
		Name: "greet",
		Steps: []workflow.Step{
			{ID: "step1", Tool: "echo", Args: map[string]interface{}{}},
		},
	}))

	d := NewDispatcher(registry, wfManager, executor)
	params, _ := json.Marshal(map[string]interface{}{"name": "greet", "arguments": map[string]interface{}{}})
	result, code, msg := d.Dispatch(context.Background(), "tools/call", params, "req-1")
	require.Equal(t, 0, code, msg)
	callResult := result.(*mcp.CallToolResult)
	assert.False(t, callResult.IsError)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), nil, nil)
	_, code, _ := d.Dispatch(context.Background(), "bogus/method", nil, "req-1")
	assert.Equal(t, rpcMethodNotFound, code)
}
