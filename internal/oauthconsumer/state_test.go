package oauthconsumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/kvstore"
)

func TestStateStore_GenerateAndConsume(t *testing.T) {
	kv := kvstore.NewMemory(time.Minute)
	defer kv.Close()
	s := newStateStore(kv)
	ctx := context.Background()

	token, err := s.generate(ctx, "session-1", "user-1", "verifier-1")
	require.NoError(t, err)

	flow, err := s.consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", flow.SessionID)
	assert.Equal(t, "verifier-1", flow.CodeVerifier)
}

func TestStateStore_ConsumeIsSingleUse(t *testing.T) {
	kv := kvstore.NewMemory(time.Minute)
	defer kv.Close()
	s := newStateStore(kv)
	ctx := context.Background()

	token, err := s.generate(ctx, "session-1", "user-1", "verifier-1")
	require.NoError(t, err)

	_, err = s.consume(ctx, token)
	require.NoError(t, err)

	_, err = s.consume(ctx, token)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateStore_ConsumeUnknownTokenFails(t *testing.T) {
	kv := kvstore.NewMemory(time.Minute)
	defer kv.Close()
	s := newStateStore(kv)

	_, err := s.consume(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrStateNotFound)
}
