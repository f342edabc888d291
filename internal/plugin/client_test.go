package plugin

import (
	"context"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	initErr  error
	tools    []mcp.Tool
	listErr  error
	callErr  error
	closed   bool
	lastCall string
}

func (f *fakeConn) Initialize(_ context.Context, _ mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (f *fakeConn) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeConn) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.lastCall = req.Params.Name
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("ok")}}, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestClient_AttachSucceeds(t *testing.T) {
	c := newClient("echo")
	conn := &fakeConn{}
	require.NoError(t, c.attach(context.Background(), conn, "echo"))
	assert.True(t, c.connected)
}

func TestClient_AttachFailsClosesConn(t *testing.T) {
	c := newClient("echo")
	conn := &fakeConn{initErr: fmt.Errorf("handshake refused")}
	err := c.attach(context.Background(), conn, "echo")
	require.Error(t, err)
	assert.False(t, c.connected)
	assert.True(t, conn.closed)
}

func TestClient_ListToolsRequiresConnection(t *testing.T) {
	c := newClient("echo")
	_, err := c.listTools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestClient_ListAndCallTool(t *testing.T) {
	c := newClient("echo")
	conn := &fakeConn{tools: []mcp.Tool{{Name: "echo.say"}}}
	require.NoError(t, c.attach(context.Background(), conn, "echo"))

	tools, err := c.listTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo.say", tools[0].Name)

	result, err := c.callTool(context.Background(), "echo.say", map[string]interface{}{"msg": "hi"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "echo.say", conn.lastCall)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := newClient("echo")
	conn := &fakeConn{}
	require.NoError(t, c.attach(context.Background(), conn, "echo"))
	require.NoError(t, c.close())
	assert.False(t, c.connected)
	require.NoError(t, c.close())
}
