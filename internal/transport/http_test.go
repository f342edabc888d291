package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/eventstore"
	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/internal/session"
)

func newTestHandler(t *testing.T) *HTTPHandler {
	t.Helper()
	store, err := eventstore.New(kvstore.NewMemory(0))
	require.NoError(t, err)
	sessions := session.NewManager(time.Minute)
	dispatcher := NewDispatcher(newTestRegistry(t), nil, nil)
	return NewHTTPHandler(sessions, store, dispatcher, 20*time.Millisecond, 0)
}

func TestHandlePost_InitializeMintsSession(t *testing.T) {
	h := newTestHandler(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	sessionID := rec.Header().Get(sessionHeader)
	assert.NotEmpty(t, sessionID)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHandlePost_NonInitializeWithoutSessionFails(t *testing.T) {
	h := newTestHandler(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePost_UnknownSessionFails(t *testing.T) {
	h := newTestHandler(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set(sessionHeader, "does-not-exist")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePost_ToolsListWithValidSession(t *testing.T) {
	h := newTestHandler(t)
	sess, err := h.sessions.Create(context.Background(), session.TransportHTTP, "", "", nil)
	require.NoError(t, err)

	body := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set(sessionHeader, sess.ID)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHandleGet_UnknownSessionReturns404(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(sessionHeader, "nope")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGet_ExpiredSessionReturns410(t *testing.T) {
	store, err := eventstore.New(kvstore.NewMemory(0))
	require.NoError(t, err)
	kv := kvstore.NewMemory(time.Hour)
	sessions := session.NewManager(5*time.Millisecond, session.WithPersistence(kv))
	defer sessions.Stop()
	h := NewHTTPHandler(sessions, store, NewDispatcher(newTestRegistry(t), nil, nil), 20*time.Millisecond, 0)

	sess, err := sessions.Create(context.Background(), session.TransportHTTP, "", "", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := sessions.Get(context.Background(), sess.ID, session.TransportHTTP)
		var expired *session.ExpiredError
		return errors.As(err, &expired)
	}, time.Second, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(sessionHeader, sess.ID)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHandleGet_MissingSessionHeaderReturns400(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDelete_IsIdempotent(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(sessionHeader, "never-existed")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleDelete_RemovesLiveSession(t *testing.T) {
	h := newTestHandler(t)
	sess, err := h.sessions.Create(context.Background(), session.TransportHTTP, "", "", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(sessionHeader, sess.ID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = h.sessions.Get(context.Background(), sess.ID, session.TransportHTTP)
	assert.Error(t, err)
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPut, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
