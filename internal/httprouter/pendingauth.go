package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcpkit/mcpserver/internal/kvstore"
)

// pendingAuthTTL bounds how long a /authorize request may sit unresolved
// while the upstream provider (if any) completes its own flow.
const pendingAuthTTL = 10 * time.Minute

const pendingAuthPrefix = "httprouter/pendingauth/"

var errPendingAuthNotFound = errors.New("httprouter: pending authorization not found or expired")

// pendingAuth is the MCP client's original /authorize request, parked
// while the OAuth Consumer drives the upstream provider's flow. It is
// recovered by federatedUserID once the upstream provider redirects back to
// /callback, per spec section 4.4 step 3.
type pendingAuth struct {
	ClientID            string   `json:"clientId"`
	RedirectURI         string   `json:"redirectUri"`
	ClientState         string   `json:"clientState"`
	Scopes              []string `json:"scopes"`
	CodeChallenge       string   `json:"codeChallenge"`
	CodeChallengeMethod string   `json:"codeChallengeMethod"`
}

type pendingAuthStore struct {
	kv kvstore.Store
}

func newPendingAuthStore(kv kvstore.Store) *pendingAuthStore {
	return &pendingAuthStore{kv: kv}
}

// put parks req under federatedUserID, the same identity value passed to
// oauthconsumer.Consumer.BeginAuthorization as both sessionID and userID -
// see federatedUserID's doc comment for why that value doubles as the
// correlation key.
func (s *pendingAuthStore) put(ctx context.Context, federatedUserID string, req pendingAuth) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal pending authorization: %w", err)
	}
	return s.kv.Set(ctx, pendingAuthPrefix+federatedUserID, data, pendingAuthTTL)
}

// take retrieves and removes the pending request for federatedUserID.
func (s *pendingAuthStore) take(ctx context.Context, federatedUserID string) (*pendingAuth, error) {
	raw, err := s.kv.Get(ctx, pendingAuthPrefix+federatedUserID)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, errPendingAuthNotFound
		}
		return nil, err
	}
	_ = s.kv.Delete(ctx, pendingAuthPrefix+federatedUserID)

	var p pendingAuth
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pending authorization: %w", err)
	}
	return &p, nil
}
