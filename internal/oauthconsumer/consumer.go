package oauthconsumer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/mcpkit/mcpserver/internal/config"
	"github.com/mcpkit/mcpserver/internal/credential"
	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/internal/oauthserver"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// tokenExpiryMargin matches the teacher's internal/oauth tokenExpiryMargin:
// a token within this margin of expiring is treated as already expired.
const tokenExpiryMargin = 30 * time.Second

// tokenResponse is the wire shape of an RFC 6749 token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Consumer bridges this server to a single configured upstream OAuth
// provider: it builds authorization URLs, exchanges codes, and keeps each
// user's UpstreamCredential fresh.
//
// Adapted from the teacher's internal/oauth.Client/Manager, narrowed from
// "one client serving many remote MCP servers, each its own issuer" down to
// "one client, one configured upstream provider" (spec's OAuth Consumer
// entity is singular), and repointed from the teacher's in-memory
// TokenStore/StateStore onto internal/credential.Store and
// internal/kvstore respectively.
type Consumer struct {
	cfg         config.OAuthConsumerConfig
	credentials *credential.Store
	states      *stateStore
	metadata    *metadataResolver
	httpClient  *http.Client

	// refreshGroup collapses concurrent refreshes of the same user's
	// upstream token into a single in-flight call, grounded in
	// golang.org/x/sync/singleflight (already used by metadataResolver,
	// per the teacher's own dedup idiom in internal/oauth/client.go).
	refreshGroup singleflight.Group
}

// New builds a Consumer. kv backs the ephemeral state-parameter store;
// credentials is where refreshed tokens land.
func New(cfg config.OAuthConsumerConfig, kv kvstore.Store, credentials *credential.Store) *Consumer {
	return &Consumer{
		cfg:         cfg,
		credentials: credentials,
		states:      newStateStore(kv),
		metadata:    newMetadataResolver(nil),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether an upstream provider is configured at all - the
// OAuth Consumer is entirely optional (spec §4.4 step 2's "else" branch).
func (c *Consumer) Enabled() bool {
	return c != nil && c.cfg.Provider != "" && c.cfg.ClientID != ""
}

// ProviderID returns the configured upstream provider identifier, the key
// credentials are stored under alongside the userId.
func (c *Consumer) ProviderID() string {
	return c.cfg.Provider
}

// BeginAuthorization starts the authorization_code flow against the
// configured upstream provider on behalf of sessionID/userID, returning the
// URL the user should be redirected to.
func (c *Consumer) BeginAuthorization(ctx context.Context, sessionID, userID string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("oauthconsumer: no upstream provider configured")
	}

	md, err := c.metadata.resolve(ctx, c.cfg.Provider, c.cfg.AuthURL, c.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("resolve provider metadata: %w", err)
	}

	pkce, err := oauthserver.GeneratePKCE()
	if err != nil {
		return "", err
	}

	state, err := c.states.generate(ctx, sessionID, userID, pkce.CodeVerifier)
	if err != nil {
		return "", err
	}

	authURL, err := url.Parse(md.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	q := authURL.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	q.Set("code_challenge", pkce.CodeChallenge)
	q.Set("code_challenge_method", pkce.CodeChallengeMethod)
	if len(c.cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}
	authURL.RawQuery = q.Encode()

	logging.Audit(logging.AuditEvent{Action: "oauth_consumer_authorize_started", Outcome: "success", SessionID: sessionID, UserID: userID})
	return authURL.String(), nil
}

// CompleteAuthorization finishes the flow on callback: it resolves the
// state parameter back to its pending flow, exchanges the code, and
// persists the resulting credential.
func (c *Consumer) CompleteAuthorization(ctx context.Context, code, state string) (*credential.Credential, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("oauthconsumer: no upstream provider configured")
	}

	flow, err := c.states.consume(ctx, state)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "oauth_consumer_callback", Outcome: "failure", Error: err.Error()})
		return nil, err
	}

	tok, err := c.exchangeCode(ctx, code, flow.CodeVerifier)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "oauth_consumer_callback", Outcome: "failure", UserID: flow.UserID, Error: err.Error()})
		return nil, err
	}

	cred := &credential.Credential{
		UserID:       flow.UserID,
		ProviderID:   c.cfg.Provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       scopesFromToken(tok),
	}
	if err := c.credentials.Save(ctx, cred); err != nil {
		return nil, err
	}

	logging.Audit(logging.AuditEvent{Action: "oauth_consumer_callback", Outcome: "success", UserID: flow.UserID})
	return cred, nil
}

// GetFreshCredential returns a valid, non-expiring-soon credential for
// (userID, providerID), refreshing it first if necessary. The second return
// value reports whether a refresh actually took place, so callers can
// distinguish "upstream session already valid" from "upstream token just
// got refreshed" (spec's actionTaken="third_party_token_refreshed").
func (c *Consumer) GetFreshCredential(ctx context.Context, userID, providerID string) (*credential.Credential, bool, error) {
	cred, err := c.credentials.Get(ctx, userID, providerID)
	if err != nil {
		return nil, false, err
	}
	if !cred.Expired() {
		return cred, false, nil
	}
	fresh, err := c.refresh(ctx, cred)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// refresh rotates cred's access token via its refresh token, collapsing
// concurrent refreshes for the same (userID, providerID) into one
// in-flight token-endpoint call.
func (c *Consumer) refresh(ctx context.Context, cred *credential.Credential) (*credential.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("oauthconsumer: credential has no refresh token")
	}

	key := cred.UserID + "/" + cred.ProviderID
	result, err, _ := c.refreshGroup.Do(key, func() (interface{}, error) {
		// Re-read in case another goroutine already refreshed while this
		// one was waiting to enter the group.
		current, err := c.credentials.Get(ctx, cred.UserID, cred.ProviderID)
		if err == nil && !current.Expired() {
			return current, nil
		}
		if err != nil {
			current = cred
		}

		tok, err := c.refreshToken(ctx, current.RefreshToken)
		if err != nil {
			logging.Audit(logging.AuditEvent{Action: "oauth_consumer_refresh", Outcome: "failure", UserID: current.UserID, Error: err.Error()})
			return nil, err
		}

		refreshToken := tok.RefreshToken
		if refreshToken == "" {
			refreshToken = current.RefreshToken
		}
		next := &credential.Credential{
			UserID:       current.UserID,
			ProviderID:   current.ProviderID,
			AccessToken:  tok.AccessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    tok.Expiry,
			Scopes:       current.Scopes,
		}
		if err := c.credentials.Save(ctx, next); err != nil {
			return nil, err
		}
		logging.Audit(logging.AuditEvent{Action: "oauth_consumer_refresh", Outcome: "success", UserID: next.UserID})
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*credential.Credential), nil
}

func (c *Consumer) exchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	md, err := c.metadata.resolve(ctx, c.cfg.Provider, c.cfg.AuthURL, c.cfg.TokenURL)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.cfg.RedirectURI},
		"client_id":     {c.cfg.ClientID},
		"code_verifier": {codeVerifier},
	}
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}
	return c.postForm(ctx, md.TokenEndpoint, form)
}

func (c *Consumer) refreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	md, err := c.metadata.resolve(ctx, c.cfg.Provider, c.cfg.AuthURL, c.cfg.TokenURL)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.cfg.ClientID},
	}
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}
	return c.postForm(ctx, md.TokenEndpoint, form)
}

// postForm POSTs form to endpoint and wraps the RFC 6749 token response in
// an oauth2.Token, matching the teacher's internal/agent/oauth/client.go
// exchangeCode (hand-roll the HTTP exchange, then wrap the parsed fields in
// golang.org/x/oauth2's token type rather than a bespoke one).
func (c *Consumer) postForm(ctx context.Context, endpoint string, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// The response body may carry error_description/hints; log it but
		// keep the returned error generic so it is safe to surface to a
		// caller that might propagate it to an MCP client.
		logging.Debug("OAuthConsumer", "token endpoint returned status=%d body=%s", resp.StatusCode, string(body))
		if challenge := ParseWWWAuthenticate(resp.Header.Get("WWW-Authenticate")); challenge.IsOAuthChallenge() {
			return nil, fmt.Errorf("oauthconsumer: token endpoint returned status %d: %s", resp.StatusCode, challenge.Error)
		}
		return nil, fmt.Errorf("oauthconsumer: token endpoint returned status %d", resp.StatusCode)
	}

	var wire tokenResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	logging.Debug("OAuthConsumer", "obtained upstream access token=%s refresh_token=%s", NewRedactedToken(wire.AccessToken), NewRedactedToken(wire.RefreshToken))

	tok := &oauth2.Token{
		AccessToken:  wire.AccessToken,
		TokenType:    wire.TokenType,
		RefreshToken: wire.RefreshToken,
	}
	if wire.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second)
	}
	if wire.Scope != "" {
		tok = tok.WithExtra(map[string]interface{}{"scope": wire.Scope})
	}
	return tok, nil
}

// scopesFromToken recovers the space-delimited scope string postForm
// stashed in the token's extra fields, if the upstream response included
// one.
func scopesFromToken(tok *oauth2.Token) []string {
	scope, _ := tok.Extra("scope").(string)
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
