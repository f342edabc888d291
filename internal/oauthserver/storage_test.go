package oauthserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/kvstore"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	kv := kvstore.NewMemory(time.Minute)
	t.Cleanup(func() { _ = kv.Close() })
	return NewStorage(kv)
}

func TestStorage_SaveAndGetClient(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c := &Client{ClientID: "client-1", ClientName: "Test Client", RedirectURIs: []string{"https://app.example.com/cb"}}
	require.NoError(t, s.SaveClient(ctx, c))

	got, err := s.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Client", got.ClientName)
}

func TestStorage_GetClient_MissingReturnsNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetClient(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_ConsumeCode_SucceedsOnceThenFails(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ac := &AuthorizationCode{Code: "code-1", ClientID: "client-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, s.SaveCode(ctx, ac))

	got, err := s.ConsumeCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	_, err = s.ConsumeCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_ConsumeCode_ExpiredReturnsErrExpired(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ac := &AuthorizationCode{Code: "code-1", ClientID: "client-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.SaveCode(ctx, ac))
	// Backdate the in-memory record's logical expiry without letting the
	// kvstore TTL reap it first, to exercise the envelope's own expiry check.
	ac.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.SaveCode(ctx, ac))

	_, err := s.ConsumeCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestStorage_ConsumeRefreshToken_RotatesExactlyOnce(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rt := &RefreshToken{Token: "refresh-1", ClientID: "client-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.SaveRefreshToken(ctx, rt))

	got, err := s.ConsumeRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	_, err = s.ConsumeRefreshToken(ctx, "refresh-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_RevokeAccessToken_MarksRevoked(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tok := &AccessToken{JTI: "jti-1", ClientID: "client-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.SaveAccessToken(ctx, tok))

	require.NoError(t, s.RevokeAccessToken(ctx, "jti-1"))

	got, err := s.GetAccessToken(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestStorage_RevokeAccessToken_MissingIsNotAnError(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.RevokeAccessToken(context.Background(), "missing"))
}

func TestStorage_RefreshToken_EncryptedAtRest(t *testing.T) {
	kv := kvstore.NewMemory(time.Minute)
	t.Cleanup(func() { _ = kv.Close() })

	key := make([]byte, 32)
	s, err := NewStorageWithEncryption(kv, key)
	require.NoError(t, err)
	ctx := context.Background()

	rt := &RefreshToken{Token: "refresh-1", ClientID: "client-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.SaveRefreshToken(ctx, rt))

	raw, err := kv.Get(ctx, refreshKey("refresh-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "user-1")

	got, err := s.ConsumeRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
}
