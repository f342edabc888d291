package oauthserver

import "time"

// tokenExpiryMargin accounts for clock skew between this server and the
// client when deciding whether a token has expired, matching the teacher's
// internal/oauth/token_store.go tokenExpiryMargin constant.
const tokenExpiryMargin = 30 * time.Second

// Client is a registered OAuth client, created either via dynamic client
// registration (RFC 7591) or preconfigured by an operator.
type Client struct {
	ClientID                string
	ClientName               string
	RedirectURIs            []string
	GrantTypes              []string
	TokenEndpointAuthMethod string
	Public                  bool // public clients (native/SPA) never receive a client_secret
	ClientSecretHash        string
	CreatedAt               time.Time
}

// AuthorizationCode is a single-use code issued at the end of the
// authorization step, redeemed exactly once at the token endpoint.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
}

func (c *AuthorizationCode) expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AccessToken is the record backing a minted JWT access token, retained so
// it can be revoked before its natural expiry.
type AccessToken struct {
	JTI       string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
	Revoked   bool
}

func (t *AccessToken) expired(now time.Time) bool {
	return t.Revoked || now.Add(-tokenExpiryMargin).After(t.ExpiresAt)
}

// RefreshToken is an opaque, rotating credential: each use invalidates the
// token and issues a new one (rotation, not reuse-detection families - see
// DESIGN.md's Open Questions decisions).
type RefreshToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

func (t *RefreshToken) expired(now time.Time) bool {
	return now.Add(-tokenExpiryMargin).After(t.ExpiresAt)
}

// TokenPair is what the token endpoint returns on a successful exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
}
