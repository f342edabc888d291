package reqcontext

import (
	"context"
	"time"
)

type contextKey string

const requestContextKey contextKey = "mcpserver_request_context"

// RequestContext is the spec's RequestContext entity: everything a
// handler, tool, or workflow step needs to know about the request it is
// serving, threaded explicitly rather than recovered from goroutine-local
// state.
type RequestContext struct {
	RequestID           string
	SessionID           string
	Transport           string // "http" or "stdio"
	AuthenticatedUserID string
	ClientID            string
	Scopes              []string
	StartTime           time.Time
	Metadata            map[string]string
}

// HasScope reports whether the request carries the given OAuth scope.
func (r *RequestContext) HasScope(scope string) bool {
	for _, s := range r.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Elapsed returns how long this request has been in flight.
func (r *RequestContext) Elapsed() time.Duration {
	return time.Since(r.StartTime)
}

// WithRequestContext attaches rc to ctx, created at authentication and
// carried through the rest of the request's lifetime.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext retrieves the RequestContext previously attached with
// WithRequestContext. Returns nil, false if none is present (e.g. stdio
// transport with auth disabled, or a background task with no request in
// flight).
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(*RequestContext)
	return rc, ok && rc != nil
}

// New creates a RequestContext, stamping StartTime to now and
// initializing Metadata.
func New(requestID, transport string) *RequestContext {
	return &RequestContext{
		RequestID: requestID,
		Transport: transport,
		StartTime: time.Now(),
		Metadata:  make(map[string]string),
	}
}
