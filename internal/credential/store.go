package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/mcp-oauth/security"

	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// Credential is the spec's UpstreamCredential entity: an OAuth token issued
// by an upstream identity provider on behalf of a user, owned by this
// store and mutated only by the OAuth consumer on refresh.
type Credential struct {
	UserID       string    `json:"userId"`
	ProviderID   string    `json:"providerId"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// expiryMargin accounts for clock skew between this process and the
// upstream provider, matching the teacher's tokenExpiryMargin in
// internal/oauth/token_store.go.
const expiryMargin = 30 * time.Second

// Expired reports whether the access token is expired or within
// expiryMargin of expiring.
func (c *Credential) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(expiryMargin).After(c.ExpiresAt)
}

// Store persists UpstreamCredentials under credentials/<userId>/<providerId>,
// optionally encrypting the token payload at rest with AES-256-GCM via
// github.com/giantswarm/mcp-oauth/security.Encryptor - the same library the
// teacher's OAuth server wires into its own storage backends.
type Store struct {
	kv        kvstore.Store
	encryptor *security.Encryptor
}

// NewStore creates a credential Store backed by kv. encryptionKey may be
// nil to store tokens in plaintext (acceptable only for local development).
func NewStore(kv kvstore.Store, encryptionKey []byte) (*Store, error) {
	s := &Store{kv: kv}
	if len(encryptionKey) > 0 {
		enc, err := security.NewEncryptor(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("credential: create encryptor: %w", err)
		}
		s.encryptor = enc
	}
	return s, nil
}

func credentialKey(userID, providerID string) string {
	return fmt.Sprintf("credentials/%s/%s", userID, providerID)
}

// Save stores (or overwrites) a credential.
func (s *Store) Save(ctx context.Context, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credential: marshal: %w", err)
	}
	if s.encryptor != nil {
		data, err = s.encryptor.Encrypt(data)
		if err != nil {
			return fmt.Errorf("credential: encrypt: %w", err)
		}
	}

	var ttl time.Duration
	if !cred.ExpiresAt.IsZero() {
		// Keep a generous buffer past expiry so a recently-expired
		// credential is still readable for refresh-token exchange rather
		// than vanishing the instant the access token goes stale.
		ttl = time.Until(cred.ExpiresAt) + 24*time.Hour
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
	}
	if err := s.kv.Set(ctx, credentialKey(cred.UserID, cred.ProviderID), data, ttl); err != nil {
		return fmt.Errorf("credential: store: %w", err)
	}
	logging.Audit(logging.AuditEvent{
		Action:  "credential_saved",
		Outcome: "success",
		UserID:  cred.UserID,
		Target:  cred.ProviderID,
	})
	return nil
}

// Get retrieves the credential for (userID, providerID). Returns
// kvstore.ErrNotFound if none exists.
func (s *Store) Get(ctx context.Context, userID, providerID string) (*Credential, error) {
	data, err := s.kv.Get(ctx, credentialKey(userID, providerID))
	if err != nil {
		return nil, err
	}

	if s.encryptor != nil {
		data, err = s.encryptor.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("credential: decrypt: %w", err)
		}
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("credential: unmarshal: %w", err)
	}
	return &cred, nil
}

// Revoke deletes the credential for (userID, providerID). Idempotent.
func (s *Store) Revoke(ctx context.Context, userID, providerID string) error {
	if err := s.kv.Delete(ctx, credentialKey(userID, providerID)); err != nil {
		return fmt.Errorf("credential: revoke: %w", err)
	}
	logging.Audit(logging.AuditEvent{
		Action:  "credential_revoked",
		Outcome: "success",
		UserID:  userID,
		Target:  providerID,
	})
	return nil
}

// ListForUser returns every credential belonging to userID, across all
// providers.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Credential, error) {
	entries, err := s.kv.List(ctx, fmt.Sprintf("credentials/%s/", userID))
	if err != nil {
		return nil, fmt.Errorf("credential: list for user: %w", err)
	}

	creds := make([]*Credential, 0, len(entries))
	for _, e := range entries {
		data := e.Value
		if s.encryptor != nil {
			data, err = s.encryptor.Decrypt(data)
			if err != nil {
				logging.Warn("CredentialStore", "failed to decrypt credential at %s: %s", e.Key, err)
				continue
			}
		}
		var cred Credential
		if err := json.Unmarshal(data, &cred); err != nil {
			logging.Warn("CredentialStore", "failed to unmarshal credential at %s: %s", e.Key, err)
			continue
		}
		creds = append(creds, &cred)
	}
	return creds, nil
}

// ProviderIDFromKey extracts the providerId suffix from a KV key of the
// form credentials/<userId>/<providerId>, used by callers iterating raw
// kvstore entries outside ListForUser.
func ProviderIDFromKey(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return ""
	}
	return key[idx+1:]
}
