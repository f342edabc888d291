package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// DefaultMaxConcurrent is used when Manager is constructed with limit 0.
const DefaultMaxConcurrent = 10000

const minCleanupInterval = time.Second

// evictionGrace is how long an idle-expired session's tombstone record
// survives in the Session Store before it is gone for good. A GET that
// arrives inside this window gets ExpiredError (410); after it, NotFoundError
// (404), matching the spec's "known-but-evicted" vs "never existed" split.
const evictionGrace = 30 * time.Second

// Manager is the Session Manager: it owns the in-memory active set, writes
// through to a kvstore-backed Session Store when persistence is enabled,
// and runs a background sweeper that expires idle sessions.
//
// Grounded on internal/aggregator.SessionRegistry's shape (mutex-protected
// map, ticker-driven cleanupLoop, stopCleanup channel) generalized from
// per-server connection tracking to the spec's transport-agnostic session
// lifecycle.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	kv          kvstore.Store // nil when persistence is disabled
	maxAge      time.Duration
	maxSessions int

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithPersistence enables write-through persistence to kv. Without this
// option the Manager is purely in-memory.
func WithPersistence(kv kvstore.Store) Option {
	return func(m *Manager) { m.kv = kv }
}

// WithMaxSessions overrides DefaultMaxConcurrent.
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.maxSessions = n }
}

// NewManager creates a Manager. maxAge is the idle timeout after which a
// session with no activity is swept; the sweep runs every maxAge/2,
// floored at minCleanupInterval (one second).
func NewManager(maxAge time.Duration, opts ...Option) *Manager {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		maxSessions: DefaultMaxConcurrent,
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanupLoop()
	return m
}

func sessionKey(id string) string { return "sessions/" + id }

// Create mints a new UUIDv4 session bound to transport, persists it if
// persistence is enabled, and registers it in the active set.
func (m *Manager) Create(ctx context.Context, transport TransportType, userID, clientID string, scopes []string) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		current := len(m.sessions)
		m.mu.Unlock()
		return nil, &LimitExceededError{Limit: m.maxSessions, Current: current}
	}
	m.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		ClientID:     clientID,
		Scopes:       scopes,
		Transport:    transport,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(m.maxAge),
		Metadata:     make(map[string]string),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	if err := m.persist(ctx, sess); err != nil {
		logging.Warn("SessionManager", "failed to persist session=%s: %s", logging.TruncateSessionID(sess.ID), err)
	}
	logging.Debug("SessionManager", "created session=%s transport=%s (total=%d)", logging.TruncateSessionID(sess.ID), transport, count)
	return sess, nil
}

// Get returns the session for id, validating it exists, is unexpired, and
// (when transport is non-empty) matches the requesting transport. Touches
// lastActiveAt on success, per the spec's "touches lastActiveAt on every
// authenticated request" invariant.
func (m *Manager) Get(ctx context.Context, id string, transport TransportType) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, m.lookupEvicted(ctx, id)
	}
	if sess.Expired(time.Now()) {
		delete(m.sessions, id)
		m.mu.Unlock()
		if err := m.evict(ctx, sess); err != nil {
			logging.Warn("SessionManager", "failed to tombstone expired session=%s: %s", logging.TruncateSessionID(id), err)
		}
		return nil, &ExpiredError{SessionID: id}
	}
	if transport != "" && sess.Transport != transport {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %s belongs to transport %s, not %s", logging.TruncateSessionID(id), sess.Transport, transport)
	}

	sess.LastActiveAt = time.Now()
	sess.ExpiresAt = sess.LastActiveAt.Add(m.maxAge)
	snapshot := *sess
	m.mu.Unlock()

	if err := m.persist(ctx, &snapshot); err != nil {
		logging.Warn("SessionManager", "failed to persist activity touch for session=%s: %s", logging.TruncateSessionID(id), err)
	}
	return &snapshot, nil
}

// Delete removes a session. Idempotent: deleting an unknown session is not
// an error, matching the spec's "DELETE on an unknown session returns
// success" invariant.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return m.forget(ctx, id)
}

// Count returns the number of active (non-expired, in-memory) sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Restore recreates the in-memory active set from the Session Store,
// called at startup when MCP_ENABLE_SESSION_PERSISTENCE is set so the HTTP
// transport can rebuild MCPTransportBindings for sessions that survived a
// restart.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.kv == nil {
		return 0, nil
	}
	entries, err := m.kv.List(ctx, "sessions/")
	if err != nil {
		return 0, fmt.Errorf("session: restore: %w", err)
	}

	now := time.Now()
	restored := 0
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		var sess Session
		if err := json.Unmarshal(e.Value, &sess); err != nil {
			logging.Warn("SessionManager", "skipping corrupt persisted session at %s: %s", e.Key, err)
			continue
		}
		if sess.Expired(now) {
			continue
		}
		m.sessions[sess.ID] = &sess
		restored++
	}
	return restored, nil
}

func (m *Manager) persist(ctx context.Context, sess *Session) error {
	if m.kv == nil {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return m.kv.Set(ctx, sessionKey(sess.ID), data, ttl)
}

func (m *Manager) forget(ctx context.Context, id string) error {
	if m.kv == nil {
		return nil
	}
	return m.kv.Delete(ctx, sessionKey(id))
}

// evict replaces sess's persisted record with a short-lived tombstone
// instead of deleting it outright, so a GET that arrives shortly after
// idle-expiry can be told "expired" rather than "unknown".
func (m *Manager) evict(ctx context.Context, sess *Session) error {
	if m.kv == nil {
		return nil
	}
	tombstone := *sess
	tombstone.Evicted = true
	data, err := json.Marshal(&tombstone)
	if err != nil {
		return fmt.Errorf("session: marshal tombstone: %w", err)
	}
	return m.kv.Set(ctx, sessionKey(sess.ID), data, evictionGrace)
}

// lookupEvicted is consulted when id is absent from the in-memory active
// set: it checks the Session Store for a still-live tombstone before
// concluding the session was never known.
func (m *Manager) lookupEvicted(ctx context.Context, id string) error {
	if m.kv == nil {
		return &NotFoundError{SessionID: id}
	}
	data, err := m.kv.Get(ctx, sessionKey(id))
	if err != nil {
		return &NotFoundError{SessionID: id}
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || !sess.Evicted {
		return &NotFoundError{SessionID: id}
	}
	return &ExpiredError{SessionID: id}
}

// Stop halts the background cleanup goroutine.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
}

func (m *Manager) cleanupLoop() {
	interval := m.maxAge / 2
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) cleanup() {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			snapshot := *sess
			expired = append(expired, &snapshot)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	for _, sess := range expired {
		if err := m.evict(context.Background(), sess); err != nil {
			logging.Warn("SessionManager", "failed to tombstone expired session=%s: %s", logging.TruncateSessionID(sess.ID), err)
		}
	}
	logging.Debug("SessionManager", "swept %d idle sessions", len(expired))
}
