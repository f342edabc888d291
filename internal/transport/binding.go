package transport

import (
	"sync"
)

// binding is the MCPTransportBinding of spec section 3: in-memory
// per-session protocol state owned exclusively by the HTTP transport. It
// pairs a session id with whatever SSE stream is currently open for it, if
// any. Recreated on demand rather than persisted - on restart, a session
// restored from internal/session.Manager gets a fresh, empty binding the
// first time its client reconnects.
type binding struct {
	sessionID string

	mu     sync.Mutex
	stream *sseStream // nil when no GET /mcp SSE stream is open
}

// bindingTable is the process-wide set of live bindings, keyed by session
// id. Grounded on the teacher's SessionRegistry (internal/aggregator) mutex-
// protected map shape, narrowed to this package's single concern.
type bindingTable struct {
	mu    sync.RWMutex
	byID  map[string]*binding
}

func newBindingTable() *bindingTable {
	return &bindingTable{byID: make(map[string]*binding)}
}

// getOrCreate returns the binding for sessionID, creating it if absent.
func (t *bindingTable) getOrCreate(sessionID string) *binding {
	t.mu.RLock()
	b, ok := t.byID[sessionID]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.byID[sessionID]; ok {
		return b
	}
	b = &binding{sessionID: sessionID}
	t.byID[sessionID] = b
	return b
}

// get returns the existing binding for sessionID, or nil if none exists.
func (t *bindingTable) get(sessionID string) *binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[sessionID]
}

// remove drops sessionID's binding, closing any open SSE stream first.
func (t *bindingTable) remove(sessionID string) {
	t.mu.Lock()
	b, ok := t.byID[sessionID]
	delete(t.byID, sessionID)
	t.mu.Unlock()

	if ok {
		b.mu.Lock()
		if b.stream != nil {
			b.stream.close()
			b.stream = nil
		}
		b.mu.Unlock()
	}
}

// attachStream installs stream as sessionID's active SSE stream, closing
// any previous stream first (a session has at most one live GET /mcp at a
// time).
func (b *binding) attachStream(stream *sseStream) {
	b.mu.Lock()
	prev := b.stream
	b.stream = stream
	b.mu.Unlock()
	if prev != nil {
		prev.close()
	}
}

// detachStream clears the binding's stream if it is still s (a reconnect
// may have already replaced it).
func (b *binding) detachStream(s *sseStream) {
	b.mu.Lock()
	if b.stream == s {
		b.stream = nil
	}
	b.mu.Unlock()
}
