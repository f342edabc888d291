// Package reqcontext carries the spec's RequestContext value across the
// lifetime of a single MCP request's asynchronous work: requestId,
// sessionId, transport, authenticated identity, scopes, start time, and
// free-form metadata.
//
// It follows the teacher's context.WithValue idiom from
// internal/server/token_provider.go (a private contextKey type plus
// paired With*/From* functions) rather than reinventing a goroutine-local
// or async-local mechanism - the spec explicitly calls for an explicit,
// passed context value.
package reqcontext
