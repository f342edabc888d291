package reqcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRequestContext_RoundTrips(t *testing.T) {
	rc := New("req-1", "http")
	rc.AuthenticatedUserID = "user-1"
	rc.Scopes = []string{"tools:read"}

	ctx := WithRequestContext(context.Background(), rc)
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "user-1", got.AuthenticatedUserID)
}

func TestFromContext_AbsentReturnsFalse(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestHasScope(t *testing.T) {
	rc := New("req-1", "http")
	rc.Scopes = []string{"tools:read", "tools:write"}
	assert.True(t, rc.HasScope("tools:write"))
	assert.False(t, rc.HasScope("admin"))
}

func TestElapsed_TracksStartTime(t *testing.T) {
	rc := New("req-1", "http")
	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, rc.Elapsed(), time.Duration(0))
}
