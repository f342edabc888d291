package oauthserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/mcp-oauth/security"

	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

const (
	clientKeyPrefix = "oauth/client/"
	codeKeyPrefix   = "oauth/code/"
	accessKeyPrefix = "oauth/access/"
	refreshPrefix   = "oauth/refresh/"
)

var (
	// ErrNotFound is returned when a client, code, or token does not exist.
	ErrNotFound = errors.New("oauthserver: not found")
	// ErrExpired is returned when a code or token exists but is no longer valid.
	ErrExpired = errors.New("oauthserver: expired")
	// ErrAlreadyConsumed is returned when a concurrent redemption of the
	// same authorization code or refresh token won the compare-and-delete.
	// A replay after the record is gone gets ErrNotFound instead.
	ErrAlreadyConsumed = errors.New("oauthserver: already consumed")
)

// Storage persists clients, authorization codes, access tokens, and refresh
// tokens on top of internal/kvstore.Store - this module's own embedded
// key-value store, standing in for the external Valkey/memory backends the
// teacher's storage.TokenStore/ClientStore/FlowStore implementations use.
type Storage struct {
	kv        kvstore.Store
	encryptor *security.Encryptor
}

// NewStorage wraps kv as OAuth authorization-server storage.
func NewStorage(kv kvstore.Store) *Storage {
	return &Storage{kv: kv}
}

// NewStorageWithEncryption wraps kv as OAuth authorization-server storage
// and encrypts refresh tokens at rest with AES-256-GCM via
// github.com/giantswarm/mcp-oauth/security.Encryptor, the same library the
// teacher wires into its own OAuth storage backends.
func NewStorageWithEncryption(kv kvstore.Store, encryptionKey []byte) (*Storage, error) {
	enc, err := security.NewEncryptor(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("oauthserver: create encryptor: %w", err)
	}
	return &Storage{kv: kv, encryptor: enc}, nil
}

func clientKey(id string) string  { return clientKeyPrefix + id }
func codeKey(code string) string  { return codeKeyPrefix + code }
func accessKey(jti string) string { return accessKeyPrefix + jti }
func refreshKey(tok string) string { return refreshPrefix + tok }

// SaveClient registers or overwrites a client record.
func (s *Storage) SaveClient(ctx context.Context, c *Client) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal client: %w", err)
	}
	return s.kv.Set(ctx, clientKey(c.ClientID), b, 0)
}

// GetClient fetches a previously registered client.
func (s *Storage) GetClient(ctx context.Context, clientID string) (*Client, error) {
	b, err := s.kv.Get(ctx, clientKey(clientID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var c Client
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal client: %w", err)
	}
	return &c, nil
}

// SaveCode persists a freshly issued authorization code, TTL-bounded to its
// own expiry so an unredeemed code disappears on its own.
func (s *Storage) SaveCode(ctx context.Context, code *AuthorizationCode) error {
	b, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	return s.kv.Set(ctx, codeKey(code.Code), b, time.Until(code.ExpiresAt))
}

// ConsumeCode atomically redeems an authorization code: it is fetched and
// deleted in one compare-and-delete, so a concurrent or replayed redemption
// of the same code fails rather than being served twice.
func (s *Storage) ConsumeCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	raw, err := s.kv.Get(ctx, codeKey(code))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ok, err := s.kv.CompareAndDelete(ctx, codeKey(code), raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		logging.Audit(logging.AuditEvent{Action: "oauth_code_replay", Outcome: "failure", Target: redact(code)})
		return nil, ErrAlreadyConsumed
	}
	var ac AuthorizationCode
	if err := json.Unmarshal(raw, &ac); err != nil {
		return nil, fmt.Errorf("unmarshal code: %w", err)
	}
	if ac.expired(time.Now()) {
		return nil, ErrExpired
	}
	return &ac, nil
}

// SaveAccessToken records a minted access token so it can be looked up for
// revocation or introspection before its JWT expiry.
func (s *Storage) SaveAccessToken(ctx context.Context, tok *AccessToken) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal access token: %w", err)
	}
	return s.kv.Set(ctx, accessKey(tok.JTI), b, time.Until(tok.ExpiresAt))
}

// GetAccessToken fetches the server-side record for jti, or ErrNotFound if
// it has already expired out of the store.
func (s *Storage) GetAccessToken(ctx context.Context, jti string) (*AccessToken, error) {
	b, err := s.kv.Get(ctx, accessKey(jti))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var tok AccessToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal access token: %w", err)
	}
	return &tok, nil
}

// RevokeAccessToken marks jti revoked so GetAccessToken and introspection
// reject it even though its JWT signature still verifies.
func (s *Storage) RevokeAccessToken(ctx context.Context, jti string) error {
	tok, err := s.GetAccessToken(ctx, jti)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	tok.Revoked = true
	return s.SaveAccessToken(ctx, tok)
}

// SaveRefreshToken persists a rotating refresh token, encrypted at rest
// when this Storage was built with NewStorageWithEncryption.
func (s *Storage) SaveRefreshToken(ctx context.Context, tok *RefreshToken) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	if s.encryptor != nil {
		b, err = s.encryptor.Encrypt(b)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}
	return s.kv.Set(ctx, refreshKey(tok.Token), b, time.Until(tok.ExpiresAt))
}

// ConsumeRefreshToken atomically redeems and deletes a refresh token so
// that rotation is exactly-once: a replayed refresh token (one already
// rotated away) fails instead of minting a second token pair.
func (s *Storage) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	raw, err := s.kv.Get(ctx, refreshKey(token))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ok, err := s.kv.CompareAndDelete(ctx, refreshKey(token), raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		logging.Audit(logging.AuditEvent{Action: "oauth_refresh_replay", Outcome: "failure", Target: redact(token)})
		return nil, ErrAlreadyConsumed
	}
	plain := raw
	if s.encryptor != nil {
		plain, err = s.encryptor.Decrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	var rt RefreshToken
	if err := json.Unmarshal(plain, &rt); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	if rt.expired(time.Now()) {
		return nil, ErrExpired
	}
	return &rt, nil
}

// redact trims a token to a short prefix for audit logging, never storing
// or emitting the full secret.
func redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}
