package oauthserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcpkit/mcpserver/internal/config"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// codeTTL bounds how long an issued authorization code may sit unredeemed.
const codeTTL = 5 * time.Minute

// Server is the OAuth 2.1 authorization server this framework exposes to
// MCP clients. It owns client registration, the authorize/token endpoints'
// business logic, and bearer-token verification; internal/httprouter wires
// it onto concrete HTTP routes.
type Server struct {
	storage *Storage
	jwt     *JWTIssuer
	cfg     config.OAuthServerConfig
}

// New builds a Server from resolved configuration. signingKey is the raw
// key material used to sign minted JWTs; it is used as given, nothing is
// derived from cfg (internal/app reads it from MCP_TOKEN_SIGNING_KEY).
func New(storage *Storage, cfg config.OAuthServerConfig, signingKey []byte) (*Server, error) {
	issuer, err := NewJWTIssuer(signingKey, cfg.Issuer, cfg.TokenExpiration)
	if err != nil {
		return nil, err
	}
	return &Server{storage: storage, jwt: issuer, cfg: cfg}, nil
}

// RegisterClient implements dynamic client registration (RFC 7591). It is
// only reachable when cfg.DynamicRegistration is true; internal/httprouter
// enforces that gate before calling here.
func (s *Server) RegisterClient(ctx context.Context, name string, redirectURIs []string, public bool) (*Client, string, error) {
	id := uuid.NewString()
	var secret string
	c := &Client{
		ClientID:                id,
		ClientName:              name,
		RedirectURIs:            redirectURIs,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethod: "none",
		Public:                  public,
		CreatedAt:               time.Now(),
	}
	if !public {
		var err error
		secret, err = GenerateToken()
		if err != nil {
			return nil, "", fmt.Errorf("generate client secret: %w", err)
		}
		c.ClientSecretHash = hashSecret(secret)
		c.TokenEndpointAuthMethod = "client_secret_basic"
	}
	if err := s.storage.SaveClient(ctx, c); err != nil {
		return nil, "", err
	}
	logging.Audit(logging.AuditEvent{Action: "oauth_client_registered", Outcome: "success", Target: id})
	return c, secret, nil
}

// ValidateRedirectURI reports whether uri is registered for clientID.
func (s *Server) ValidateRedirectURI(ctx context.Context, clientID, uri string) (bool, error) {
	c, err := s.storage.GetClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true, nil
		}
	}
	return false, nil
}

// Authorize records the authorization decision (the resource owner having
// approved clientID for scopes) and issues a single-use code. codeChallenge
// is mandatory for every client, public or confidential; cfg.PKCERequired
// is not consulted here.
func (s *Server) Authorize(ctx context.Context, clientID, userID, redirectURI string, scopes []string, codeChallenge, codeChallengeMethod string) (string, error) {
	if codeChallenge == "" {
		return "", fmt.Errorf("oauthserver: PKCE code_challenge is required")
	}
	code, err := GenerateToken()
	if err != nil {
		return "", err
	}
	ac := &AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           time.Now().Add(codeTTL),
	}
	if err := s.storage.SaveCode(ctx, ac); err != nil {
		return "", err
	}
	logging.Audit(logging.AuditEvent{Action: "oauth_code_issued", Outcome: "success", UserID: userID, Target: clientID})
	return code, nil
}

// ExchangeCode redeems an authorization code for a token pair, validating
// PKCE and the redirect_uri it was bound to.
func (s *Server) ExchangeCode(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*TokenPair, error) {
	ac, err := s.storage.ConsumeCode(ctx, code)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "oauth_token_exchange", Outcome: "failure", Target: clientID, Error: err.Error()})
		return nil, err
	}
	if ac.ClientID != clientID {
		return nil, fmt.Errorf("oauthserver: code was not issued to this client")
	}
	if ac.RedirectURI != redirectURI {
		return nil, fmt.Errorf("oauthserver: redirect_uri mismatch")
	}
	if !VerifyPKCE(codeVerifier, ac.CodeChallenge, ac.CodeChallengeMethod) {
		return nil, fmt.Errorf("oauthserver: PKCE verification failed")
	}
	pair, err := s.mintPair(ctx, ac.UserID, ac.ClientID, ac.Scopes)
	if err != nil {
		return nil, err
	}
	logging.Audit(logging.AuditEvent{Action: "oauth_token_exchange", Outcome: "success", UserID: ac.UserID, Target: clientID})
	return pair, nil
}

// RefreshExchange rotates a refresh token: the presented token is consumed
// exactly once and a new token pair is issued carrying the same identity
// and scopes.
func (s *Server) RefreshExchange(ctx context.Context, refreshToken, clientID string) (*TokenPair, error) {
	rt, err := s.storage.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "oauth_token_refresh", Outcome: "failure", Target: clientID, Error: err.Error()})
		return nil, err
	}
	if rt.ClientID != clientID {
		return nil, fmt.Errorf("oauthserver: refresh token was not issued to this client")
	}
	pair, err := s.mintPair(ctx, rt.UserID, rt.ClientID, rt.Scopes)
	if err != nil {
		return nil, err
	}
	logging.Audit(logging.AuditEvent{Action: "oauth_token_refresh", Outcome: "success", UserID: rt.UserID, Target: clientID})
	return pair, nil
}

func (s *Server) mintPair(ctx context.Context, userID, clientID string, scopes []string) (*TokenPair, error) {
	jti := uuid.NewString()
	signed, exp, err := s.jwt.Mint(jti, userID, clientID, scopes)
	if err != nil {
		return nil, err
	}
	if err := s.storage.SaveAccessToken(ctx, &AccessToken{
		JTI: jti, ClientID: clientID, UserID: userID, Scopes: scopes, ExpiresAt: exp,
	}); err != nil {
		return nil, err
	}

	refreshTTL := s.cfg.RefreshTokenExpiration
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	refreshTok, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	if err := s.storage.SaveRefreshToken(ctx, &RefreshToken{
		Token: refreshTok, ClientID: clientID, UserID: userID, Scopes: scopes,
		ExpiresAt: time.Now().Add(refreshTTL),
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  signed,
		RefreshToken: refreshTok,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		Scope:        joinScopes(scopes),
	}, nil
}

// VerifyAccessToken checks a bearer token's signature, expiry, and
// revocation status, returning the claims it carries.
func (s *Server) VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, err
	}
	rec, err := s.storage.GetAccessToken(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if rec.expired(time.Now()) {
		return nil, ErrExpired
	}
	return claims, nil
}

// Revoke revokes an access token by jti (RFC 7009 token revocation).
func (s *Server) Revoke(ctx context.Context, jti string) error {
	return s.storage.RevokeAccessToken(ctx, jti)
}

func hashSecret(secret string) string {
	// Client secrets are bearer credentials compared at auth time, not
	// decrypted; a salted hash is unnecessary since secrets are randomly
	// generated with full entropy rather than user-chosen.
	return "sha256:" + sumHex(secret)
}

func joinScopes(scopes []string) string {
	out := ""
	for i, sc := range scopes {
		if i > 0 {
			out += " "
		}
		out += sc
	}
	return out
}
