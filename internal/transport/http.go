package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mcpkit/mcpserver/internal/eventstore"
	"github.com/mcpkit/mcpserver/internal/session"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

const sessionHeader = "Mcp-Session-Id"
const lastEventHeader = "Last-Event-ID"

// HTTPHandler implements spec section 4.7: POST/GET/DELETE on /mcp. It is
// an http.Handler and is meant to be mounted by internal/httprouter behind
// internal/authmw's Wrap.
//
// Grounded on the teacher's clientSessionIDMiddleware
// (internal/aggregator/server.go) for the idea of a session id carried on a
// header, generalized here into the session-lifecycle state machine spec
// section 4.7 specifies (create-on-initialize, bind, replay, teardown)
// rather than the teacher's simpler "reuse or mint a CLI session cookie".
type HTTPHandler struct {
	sessions          *session.Manager
	events            *eventstore.Store
	dispatcher        *Dispatcher
	bindings          *bindingTable
	keepaliveInterval time.Duration
	maxRequestBytes   int64

	notifyMu sync.Mutex
	notify   map[string]chan struct{}
}

// NewHTTPHandler builds an HTTPHandler.
func NewHTTPHandler(sessions *session.Manager, events *eventstore.Store, dispatcher *Dispatcher, keepaliveInterval time.Duration, maxRequestBytes int64) *HTTPHandler {
	return &HTTPHandler{
		sessions:          sessions,
		events:            events,
		dispatcher:        dispatcher,
		bindings:          newBindingTable(),
		keepaliveInterval: keepaliveInterval,
		maxRequestBytes:   maxRequestBytes,
		notify:            make(map[string]chan struct{}),
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, h.limitOrDefault()))
	if err != nil {
		writeRPC(w, http.StatusBadRequest, errorResponse(nil, rpcParseError, "failed to read request body"))
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, http.StatusBadRequest, errorResponse(nil, rpcParseError, "invalid JSON-RPC request"))
		return
	}

	sessionID := r.Header.Get(sessionHeader)

	if sessionID == "" {
		if req.Method != "initialize" {
			writeRPC(w, http.StatusBadRequest, errorResponse(req.ID, rpcInvalidRequest, "Mcp-Session-Id required for non-initialize requests"))
			return
		}
		sess, err := h.sessions.Create(ctx, session.TransportHTTP, "", "", nil)
		if err != nil {
			var limitErr *session.LimitExceededError
			if errors.As(err, &limitErr) {
				w.Header().Set("Retry-After", "1")
				writeRPC(w, http.StatusTooManyRequests, errorResponse(req.ID, rpcInternalError, err.Error()))
				return
			}
			writeRPC(w, http.StatusInternalServerError, errorResponse(req.ID, rpcInternalError, err.Error()))
			return
		}
		result, code, msg := h.dispatcher.Dispatch(ctx, req.Method, req.Params, sess.ID)
		w.Header().Set(sessionHeader, sess.ID)
		if code != 0 {
			writeRPC(w, http.StatusOK, errorResponse(req.ID, code, msg))
			return
		}
		writeRPC(w, http.StatusOK, successResponse(req.ID, result))
		return
	}

	if _, err := h.sessions.Get(ctx, sessionID, session.TransportHTTP); err != nil {
		writeRPC(w, http.StatusBadRequest, errorResponse(req.ID, rpcInvalidRequest, "unknown session: "+sessionID))
		return
	}

	result, code, msg := h.dispatcher.Dispatch(ctx, req.Method, req.Params, sessionID)
	var resp rpcResponse
	if code != 0 {
		resp = errorResponse(req.ID, code, msg)
	} else {
		resp = successResponse(req.ID, result)
	}

	if encoded, err := json.Marshal(resp); err == nil {
		if _, appendErr := h.events.Append(ctx, sessionID, "response", encoded); appendErr != nil {
			logging.Warn("Transport", "failed to record response event for session=%s: %s", logging.TruncateSessionID(sessionID), appendErr)
		} else {
			h.wake(sessionID)
		}
	}

	writeRPC(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id required", http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Get(ctx, sessionID, session.TransportHTTP); err != nil {
		var expired *session.ExpiredError
		if errors.As(err, &expired) {
			http.Error(w, "session expired; re-initialize", http.StatusGone)
			return
		}
		http.Error(w, "session not found; re-initialize", http.StatusNotFound)
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b := h.bindings.getOrCreate(sessionID)
	b.attachStream(stream)
	defer b.detachStream(stream)
	defer stream.close()

	var lastDelivered uint64
	if v := r.Header.Get(lastEventHeader); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			lastDelivered = n
		}
	}

	if lastDelivered, err = h.replay(ctx, stream, sessionID, lastDelivered); err != nil {
		logging.Warn("Transport", "replay failed for session=%s: %s", logging.TruncateSessionID(sessionID), err)
		return
	}

	ticker := time.NewTicker(h.keepaliveOrDefault())
	defer ticker.Stop()
	ch := h.notifyChan(sessionID)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-stream.Done():
			return
		case <-ticker.C:
			if err := stream.writeComment("keepalive"); err != nil {
				return
			}
		case <-ch:
			lastDelivered, err = h.replay(ctx, stream, sessionID, lastDelivered)
			if err != nil {
				return
			}
		}
	}
}

// replay writes every event after afterID for streamID to stream, in
// order, and returns the highest delivered event id.
func (h *HTTPHandler) replay(ctx context.Context, stream *sseStream, streamID string, afterID uint64) (uint64, error) {
	events, err := h.events.Replay(ctx, streamID, afterID)
	if err != nil {
		return afterID, err
	}
	last := afterID
	for _, ev := range events {
		if err := stream.writeEvent(ev.EventID, ev.Payload); err != nil {
			return last, err
		}
		last = ev.EventID
	}
	return last, nil
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID != "" {
		h.bindings.remove(sessionID)
		h.notifyMu.Lock()
		delete(h.notify, sessionID)
		h.notifyMu.Unlock()
		if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
			logging.Warn("Transport", "error deleting session=%s: %s", logging.TruncateSessionID(sessionID), err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPHandler) limitOrDefault() int64 {
	if h.maxRequestBytes > 0 {
		return h.maxRequestBytes
	}
	return 4 << 20
}

func (h *HTTPHandler) keepaliveOrDefault() time.Duration {
	if h.keepaliveInterval > 0 {
		return h.keepaliveInterval
	}
	return 25 * time.Second
}

// notifyChan returns the per-session wake channel used to tell an open GET
// stream that a new event was appended, creating it on first use.
func (h *HTTPHandler) notifyChan(sessionID string) chan struct{} {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()
	ch, ok := h.notify[sessionID]
	if !ok {
		ch = make(chan struct{}, 1)
		h.notify[sessionID] = ch
	}
	return ch
}

// wake signals sessionID's GET stream, if any, that new events are
// available. Non-blocking: a stream that is already awake (buffered signal
// pending) simply coalesces the wakeup.
func (h *HTTPHandler) wake(sessionID string) {
	h.notifyMu.Lock()
	ch, ok := h.notify[sessionID]
	h.notifyMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func writeRPC(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
