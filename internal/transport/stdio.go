package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// stdioSessionID is the implicit, unauthenticated session STDIO requests
// are dispatched under, per spec section 4.8.
const stdioSessionID = "stdio"

// StdioTransport reads newline-delimited JSON-RPC requests from an input
// stream and writes newline-delimited JSON-RPC responses to an output
// stream. No authentication, no SSE, a single implicit session - the CLI-
// integration transport.
//
// Grounded on the teacher's stdio startup
// (a.stdioServer.Listen(a.ctx, os.Stdin, os.Stdout) in
// internal/aggregator/server.go), reimplemented directly against this
// package's own Dispatcher rather than delegating to mcp-go's StdioServer,
// for the same reason as the HTTP transport: this repo's session/event
// plumbing is bespoke.
type StdioTransport struct {
	dispatcher *Dispatcher
}

// NewStdioTransport builds a StdioTransport.
func NewStdioTransport(dispatcher *Dispatcher) *StdioTransport {
	return &StdioTransport{dispatcher: dispatcher}
}

// Run reads from r and writes to w until ctx is cancelled or r reaches EOF.
// Each line is parsed, dispatched, and answered before the next is read -
// STDIO has no concurrent in-flight requests.
func (t *StdioTransport) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if line == "" {
				continue
			}
			t.handleLine(ctx, w, line)
		}
	}
}

func (t *StdioTransport) handleLine(ctx context.Context, w io.Writer, line string) {
	var req rpcRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.write(w, errorResponse(nil, rpcParseError, "invalid JSON-RPC request"))
		return
	}

	result, code, msg := t.dispatcher.Dispatch(ctx, req.Method, req.Params, stdioSessionID)
	if code != 0 {
		t.write(w, errorResponse(req.ID, code, msg))
		return
	}
	t.write(w, successResponse(req.ID, result))
}

func (t *StdioTransport) write(w io.Writer, resp rpcResponse) {
	encoded, err := json.Marshal(resp)
	if err != nil {
		logging.Error("Transport", err, "failed to encode stdio response")
		return
	}
	if _, err := fmt.Fprintf(w, "%s\n", encoded); err != nil {
		logging.Error("Transport", err, "failed to write stdio response")
	}
}
