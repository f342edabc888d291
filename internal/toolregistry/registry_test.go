package toolregistry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func TestRegisterTool_RejectsEmptyNameOrNilHandler(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.RegisterTool(Definition{Handler: func(context.Context, map[string]interface{}, Extra) (*mcp.CallToolResult, error) {
		return nil, nil
	}}))
	assert.Error(t, r.RegisterTool(Definition{Name: "x"}))
}

func TestInvokeTool_ManagedMode_ValidatesArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(Definition{
		Name:        "echo",
		InputSchema: echoSchema(),
		Handler: func(ctx context.Context, args map[string]interface{}, extra Extra) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(args["message"].(string))}}, nil
		},
	}))

	result, err := r.InvokeTool(context.Background(), "echo", map[string]interface{}{}, "req-1")
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = r.InvokeTool(context.Background(), "echo", map[string]interface{}{"message": "hi"}, "req-2")
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestInvokeTool_NativeMode_SkipsValidation(t *testing.T) {
	r := NewRegistry()
	var gotExtra Extra
	require.NoError(t, r.RegisterTool(Definition{
		Name: "raw",
		Mode: ModeNative,
		Handler: func(ctx context.Context, args map[string]interface{}, extra Extra) (*mcp.CallToolResult, error) {
			gotExtra = extra
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("ok")}}, nil
		},
	}))

	result, err := r.InvokeTool(context.Background(), "raw", map[string]interface{}{"anything": 1}, "req-3")
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "req-3", gotExtra.RequestID)
}

func TestInvokeTool_UnknownToolReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.InvokeTool(context.Background(), "nope", nil, "req-4")
	assert.Error(t, err)
}

func TestInvokeTool_HandlerPanicBecomesErrorResult(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(Definition{
		Name: "boom",
		Mode: ModeNative,
		Handler: func(ctx context.Context, args map[string]interface{}, extra Extra) (*mcp.CallToolResult, error) {
			panic("kaboom")
		},
	}))

	result, err := r.InvokeTool(context.Background(), "boom", nil, "req-5")
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestStats_TracksCallCountAndLastCalled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(Definition{
		Name: "noop",
		Mode: ModeNative,
		Handler: func(ctx context.Context, args map[string]interface{}, extra Extra) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{}, nil
		},
	}))

	_, _ = r.InvokeTool(context.Background(), "noop", nil, "req-6")
	_, _ = r.InvokeTool(context.Background(), "noop", nil, "req-7")

	stats, ok := r.Stats("noop")
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.CallCount)
	assert.False(t, stats.LastCalled.IsZero())
}

func TestMCPTools_ReflectsRegisteredDefinitions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(Definition{
		Name:        "echo",
		Description: "echoes a message",
		InputSchema: echoSchema(),
		Handler: func(ctx context.Context, args map[string]interface{}, extra Extra) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{}, nil
		},
	}))

	tools := r.MCPTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Contains(t, tools[0].InputSchema.Required, "message")
}
