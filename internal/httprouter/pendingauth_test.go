package httprouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/kvstore"
)

func TestPendingAuthStore_PutTakeRoundTrips(t *testing.T) {
	store := newPendingAuthStore(kvstore.NewMemory(0))
	ctx := context.Background()

	req := pendingAuth{
		ClientID:            "client-1",
		RedirectURI:         "https://client.example/cb",
		ClientState:         "xyz",
		Scopes:              []string{"tools:read"},
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
	}

	require.NoError(t, store.put(ctx, "federated-1", req))

	got, err := store.take(ctx, "federated-1")
	require.NoError(t, err)
	assert.Equal(t, req, *got)
}

func TestPendingAuthStore_TakeIsOneShot(t *testing.T) {
	store := newPendingAuthStore(kvstore.NewMemory(0))
	ctx := context.Background()

	require.NoError(t, store.put(ctx, "federated-2", pendingAuth{ClientID: "c"}))

	_, err := store.take(ctx, "federated-2")
	require.NoError(t, err)

	_, err = store.take(ctx, "federated-2")
	assert.ErrorIs(t, err, errPendingAuthNotFound)
}

func TestPendingAuthStore_TakeUnknownFails(t *testing.T) {
	store := newPendingAuthStore(kvstore.NewMemory(0))

	_, err := store.take(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, errPendingAuthNotFound)
}
