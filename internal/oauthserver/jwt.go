package oauthserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims is the JWT payload minted for MCP access tokens: sub
// carries the resource owner's userId, client_id the requesting client,
// scope a space-delimited scope string.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

// JWTIssuer mints and verifies HS256 access tokens. The teacher's
// mcp-oauth integration signs tokens upstream; this module owns both
// minting and verification since it is not delegating to that server.
type JWTIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewJWTIssuer builds an issuer. signingKey must be non-empty; ttl is the
// access token lifetime (config.OAuthServerConfig.TokenExpiration).
func NewJWTIssuer(signingKey []byte, issuer string, ttl time.Duration) (*JWTIssuer, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("oauthserver: JWT signing key must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTIssuer{signingKey: signingKey, issuer: issuer, ttl: ttl}, nil
}

// Mint produces a signed JWT for jti/userID/clientID/scopes, returning the
// encoded token and its expiry.
func (j *JWTIssuer) Mint(jti, userID, clientID string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(j.ttl)
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    j.issuer,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		ClientID: clientID,
		Scope:    strings.Join(scopes, " "),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates a bearer token's signature and expiry,
// returning its claims.
func (j *JWTIssuer) Verify(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("access token invalid")
	}
	return claims, nil
}

// Scopes splits the claims' space-delimited scope string.
func (c *AccessTokenClaims) Scopes() []string {
	if c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}
