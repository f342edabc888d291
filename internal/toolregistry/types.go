package toolregistry

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// HandlerMode selects how InvokeTool treats a tool's arguments before
// calling its handler, per spec section 4.9.
type HandlerMode string

const (
	// ModeManaged validates args against the tool's compiled input schema
	// before invoking the handler. The default.
	ModeManaged HandlerMode = "managed"
	// ModeNative passes args through unvalidated; the handler is
	// responsible for its own validation and error shaping.
	ModeNative HandlerMode = "native"
)

// Extra is the thin per-call context a managed handler receives alongside
// its validated arguments.
type Extra struct {
	RequestID string
}

// Handler is a tool's implementation: validated (managed mode) or raw
// (native mode) arguments in, an MCP tool result out.
type Handler func(ctx context.Context, args map[string]interface{}, extra Extra) (*mcp.CallToolResult, error)

// Definition describes a tool at registration time.
type Definition struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema document (draft 2020-12, the dialect
	// santhosh-tekuri/jsonschema/v6 compiles by default). Ignored in
	// ModeNative.
	InputSchema map[string]interface{}
	Mode        HandlerMode
	Handler     Handler
}

// Stats are the per-tool call statistics spec section 4.9 asks to be
// exposed via an introspection call.
type Stats struct {
	CallCount  int64
	LastCalled time.Time
	AvgExecMs  float64
}
