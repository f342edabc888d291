package oauthconsumer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcpkit/mcpserver/internal/kvstore"
)

// stateTTL bounds how long an unconsumed state parameter is honored,
// matching the teacher's StateStore.stateExpiry of 10 minutes.
const stateTTL = 10 * time.Minute

const statePrefix = "oauthconsumer/state/"

// ErrStateNotFound is returned when a state parameter is unknown, expired,
// or already consumed.
var ErrStateNotFound = errors.New("oauthconsumer: state not found or expired")

// pendingFlow is what a state parameter resolves back to once the upstream
// provider redirects the user back to this server's callback.
type pendingFlow struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	CodeVerifier string    `json:"codeVerifier"`
	CreatedAt    time.Time `json:"createdAt"`
}

// stateStore persists pending-flow state on internal/kvstore rather than
// the teacher's own in-memory map, so it shares this module's single
// process-wide KV substrate like every other ephemeral store.
type stateStore struct {
	kv kvstore.Store
}

func newStateStore(kv kvstore.Store) *stateStore {
	return &stateStore{kv: kv}
}

// generate mints a random state token and records the flow it belongs to.
func (s *stateStore) generate(ctx context.Context, sessionID, userID, codeVerifier string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	flow := pendingFlow{SessionID: sessionID, UserID: userID, CodeVerifier: codeVerifier, CreatedAt: time.Now()}
	data, err := json.Marshal(flow)
	if err != nil {
		return "", fmt.Errorf("marshal pending flow: %w", err)
	}
	if err := s.kv.Set(ctx, statePrefix+token, data, stateTTL); err != nil {
		return "", err
	}
	return token, nil
}

// consume atomically redeems a state token exactly once, returning the
// flow it belongs to.
func (s *stateStore) consume(ctx context.Context, token string) (*pendingFlow, error) {
	raw, err := s.kv.Get(ctx, statePrefix+token)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	ok, err := s.kv.CompareAndDelete(ctx, statePrefix+token, raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStateNotFound
	}

	var flow pendingFlow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, fmt.Errorf("unmarshal pending flow: %w", err)
	}
	return &flow, nil
}
