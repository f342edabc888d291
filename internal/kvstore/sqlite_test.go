package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_SetGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "credentials/u1/github", []byte("token-data"), 0))

	v, err := s.Get(ctx, "credentials/u1/github")
	require.NoError(t, err)
	assert.Equal(t, []byte("token-data"), v)
}

func TestSQLite_Overwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), 0))
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), 0))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func TestSQLite_TTLExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListByPrefixEscapesWildcards(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "oauth/clients/a_b", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "oauth/clients/axb", []byte("2"), 0))

	entries, err := s.List(ctx, "oauth/clients/a_b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "oauth/clients/a_b", entries[0].Key)
}

func TestSQLite_CompareAndDelete_SucceedsOnMatch(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "oauth/codes/abc", []byte("payload"), 0))

	ok, err := s.CompareAndDelete(ctx, "oauth/codes/abc", []byte("payload"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Get(ctx, "oauth/codes/abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CompareAndDelete_FailsOnMismatch(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("payload"), 0))

	ok, err := s.CompareAndDelete(ctx, "k", []byte("wrong"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_PurgeExpired(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	s.PurgeExpired(ctx)

	entries, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
