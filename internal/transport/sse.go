package transport

import (
	"fmt"
	"net/http"
	"sync"
)

// sseStream is a single GET /mcp server-sent-event response in progress.
// Grounded on spec section 4.7's GET semantics: events are framed with
// their eventstore id so a reconnecting client's Last-Event-ID can resume
// exactly where it left off, and a keepalive comment is written on an
// external ticker (run by the caller) until a write fails or the stream is
// closed.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// newSSEStream writes the SSE response headers and returns a stream ready
// for writeEvent/writeComment. Returns an error if the ResponseWriter does
// not support flushing, which http.ResponseWriter implementations serving
// over HTTP/1.1 and HTTP/2 both do in practice.
func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("transport: response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseStream{w: w, flusher: flusher, done: make(chan struct{})}, nil
}

// writeEvent writes one event frame carrying eventID as the SSE "id" field
// (so a client's next Last-Event-ID covers it) and data as the payload.
func (s *sseStream) writeEvent(eventID uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("transport: stream closed")
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\ndata: %s\n\n", eventID, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeComment writes an SSE comment line, used for the ~25s keepalive per
// spec section 4.7. A comment carries no "id" and is never replayed.
func (s *sseStream) writeComment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("transport: stream closed")
	}
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// close marks the stream closed and signals Done(). Idempotent.
func (s *sseStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Done returns a channel closed once the stream has been closed, either by
// an explicit DELETE/teardown or by a failed keepalive write.
func (s *sseStream) Done() <-chan struct{} {
	return s.done
}
