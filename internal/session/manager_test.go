package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/kvstore"
)

func TestCreate_AssignsUUIDAndExpiry(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Stop()
	ctx := context.Background()

	sess, err := m.Create(ctx, TransportHTTP, "user-1", "client-1", []string{"read"})
	require.NoError(t, err)
	assert.Len(t, sess.ID, 36) // canonical UUID string length
	assert.True(t, sess.LastActiveAt.Before(sess.ExpiresAt) || sess.LastActiveAt.Equal(sess.ExpiresAt))
}

func TestCreate_RejectsBeyondLimit(t *testing.T) {
	m := NewManager(time.Hour, WithMaxSessions(1))
	defer m.Stop()
	ctx := context.Background()

	_, err := m.Create(ctx, TransportHTTP, "u1", "c1", nil)
	require.NoError(t, err)

	_, err = m.Create(ctx, TransportHTTP, "u2", "c1", nil)
	require.Error(t, err)
	var limitErr *LimitExceededError
	assert.ErrorAs(t, err, &limitErr)
}

func TestGet_TouchesActivityAndExtendsExpiry(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Stop()
	ctx := context.Background()

	sess, err := m.Create(ctx, TransportHTTP, "u1", "c1", nil)
	require.NoError(t, err)
	originalExpiry := sess.ExpiresAt

	time.Sleep(2 * time.Millisecond)
	got, err := m.Get(ctx, sess.ID, TransportHTTP)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.After(originalExpiry) || got.ExpiresAt.Equal(originalExpiry))
}

func TestGet_UnknownSessionReturnsNotFound(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Stop()

	_, err := m.Get(context.Background(), "nonexistent-session-id", TransportHTTP)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGet_TransportMismatchRejected(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Stop()
	ctx := context.Background()

	sess, err := m.Create(ctx, TransportStdio, "u1", "c1", nil)
	require.NoError(t, err)

	_, err = m.Get(ctx, sess.ID, TransportHTTP)
	assert.Error(t, err)
}

func TestDelete_IsIdempotent(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Stop()
	ctx := context.Background()

	assert.NoError(t, m.Delete(ctx, "never-existed"))

	sess, err := m.Create(ctx, TransportHTTP, "u1", "c1", nil)
	require.NoError(t, err)
	assert.NoError(t, m.Delete(ctx, sess.ID))
	assert.NoError(t, m.Delete(ctx, sess.ID))

	_, err = m.Get(ctx, sess.ID, TransportHTTP)
	assert.Error(t, err)
}

func TestManager_PersistsAndRestoresAcrossInstances(t *testing.T) {
	kv := kvstore.NewMemory(time.Hour)
	defer kv.Close()
	ctx := context.Background()

	m1 := NewManager(time.Hour, WithPersistence(kv))
	sess, err := m1.Create(ctx, TransportHTTP, "u1", "c1", []string{"a"})
	require.NoError(t, err)
	m1.Stop()

	m2 := NewManager(time.Hour, WithPersistence(kv))
	defer m2.Stop()
	restored, err := m2.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	got, err := m2.Get(ctx, sess.ID, TransportHTTP)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestValidateID_RejectsEmptyAndOverlong(t *testing.T) {
	assert.Error(t, ValidateID(""))
	long := make([]byte, MaxSessionIDLength+1)
	assert.Error(t, ValidateID(string(long)))
	assert.NoError(t, ValidateID("short-id"))
}

func TestGet_ExpiredSessionReturnsExpiredNotNotFound(t *testing.T) {
	kv := kvstore.NewMemory(time.Hour)
	defer kv.Close()
	m := NewManager(5*time.Millisecond, WithPersistence(kv))
	defer m.Stop()
	ctx := context.Background()

	sess, err := m.Create(ctx, TransportHTTP, "u1", "c1", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Get(ctx, sess.ID, TransportHTTP)
		var expired *ExpiredError
		return errors.As(err, &expired)
	}, time.Second, 5*time.Millisecond)

	_, err = m.Get(ctx, sess.ID, TransportHTTP)
	var expired *ExpiredError
	assert.ErrorAs(t, err, &expired)
	var notFound *NotFoundError
	assert.NotErrorAs(t, err, &notFound)
}

func TestGet_NeverExistedReturnsNotFoundNotExpired(t *testing.T) {
	kv := kvstore.NewMemory(time.Hour)
	defer kv.Close()
	m := NewManager(time.Hour, WithPersistence(kv))
	defer m.Stop()

	_, err := m.Get(context.Background(), "never-existed-session-id", TransportHTTP)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
	var expired *ExpiredError
	assert.NotErrorAs(t, err, &expired)
}

func TestCleanupLoop_SweepsExpiredSessions(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	defer m.Stop()
	ctx := context.Background()

	_, err := m.Create(ctx, TransportHTTP, "u1", "c1", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.Count() == 0
	}, 2*time.Second, 5*time.Millisecond)
}
