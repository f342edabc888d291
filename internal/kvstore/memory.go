package kvstore

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is a mutex-protected, in-memory Store with a background
// TTL-cleanup goroutine. Grounded on the teacher's internal/oauth
// TokenStore/StateStore pattern: a map guarded by sync.RWMutex, with a
// ticker-driven cleanupLoop stopped via a stopCleanup channel.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemory creates a Memory store and starts its background cleanup
// goroutine. cleanupInterval defaults to 5 minutes, matching the teacher's
// TokenStore default.
func NewMemory(cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	m := &Memory{
		data:            make(map[string]memoryEntry),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.data[key] = entry
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok || entry.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var out []Entry
	for k, v := range m.data {
		if !strings.HasPrefix(k, prefix) || v.expired(now) {
			continue
		}
		out = append(out, Entry{Key: k, Value: append([]byte(nil), v.value...), ExpiresAt: v.expiresAt})
	}
	return out, nil
}

func (m *Memory) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok || entry.expired(time.Now()) || !bytes.Equal(entry.value, expected) {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	return nil
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
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

func (m *Memory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for k, v := range m.data {
		if v.expired(now) {
			delete(m.data, k)
			count++
		}
	}
	if count > 0 {
		logging.Debug("KVStore", "cleaned up %d expired entries", count)
	}
}
