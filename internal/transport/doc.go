// Package transport implements the Transport Manager: the dual STDIO /
// streamable-HTTP MCP transport of spec section 4.1, including per-session
// lifecycle, SSE streaming with keepalive, and resumable replay via
// internal/eventstore.
//
// Grounded on the teacher's internal/aggregator/server.go for process
// lifecycle shape (systemd socket activation via
// github.com/coreos/go-systemd/v22/activation ahead of a plain net.Listen,
// a cancellable context plus sync.WaitGroup for background goroutines, an
// errorCallback for propagating async transport errors upward) and on its
// stdio path (internal/aggregator's mcpserver.NewStdioServer(...).Listen)
// for the STDIO transport's single-implicit-session shape. Unlike the
// teacher, which delegates the whole HTTP/SSE wire protocol to
// mark3labs/mcp-go's server package, this package authors its own session
// binding, Last-Event-ID replay, and idempotent-DELETE semantics directly,
// since those are exactly the custom behaviors this system adds beyond a
// generic MCP server - the mcp-go dependency is still used, but only for
// the shared wire-format types (mcp.Tool, mcp.CallToolResult, ...) already
// exercised by internal/toolregistry and internal/workflow.
package transport
