package httprouter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/mcpkit/mcpserver/internal/apierr"
	"github.com/mcpkit/mcpserver/internal/oauthserver"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// handleAuthorize implements spec section 4.4's authorize flow. It never
// renders an interactive consent page (end-user identity management is a
// Non-goal); instead it either relays the user agent to the configured
// upstream provider, or - when no upstream provider is configured - mints
// the authorization code immediately under a freshly generated identity.
func (rt *Router) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")
	codeChallenge := q.Get("code_challenge")
	codeChallengeMethod := q.Get("code_challenge_method")
	scope := q.Get("scope")

	if q.Get("response_type") != "code" {
		redirectAuthorizeError(w, r, redirectURI, state, "unsupported_response_type")
		return
	}
	if clientID == "" || redirectURI == "" {
		writeJSONError(w, apierr.Validation("client_id", "client_id and redirect_uri are required"))
		return
	}
	if ok, err := rt.server.ValidateRedirectURI(r.Context(), clientID, redirectURI); err != nil || !ok {
		writeJSONError(w, apierr.Validation("redirect_uri", "redirect_uri is not registered for this client"))
		return
	}
	if codeChallenge == "" {
		redirectAuthorizeError(w, r, redirectURI, state, "invalid_request")
		return
	}
	if codeChallengeMethod == "" {
		codeChallengeMethod = "S256"
	}

	var scopes []string
	if scope != "" {
		scopes = strings.Fields(scope)
	}

	req := pendingAuth{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		ClientState:         state,
		Scopes:              scopes,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}

	if rt.consumer != nil && rt.consumer.Enabled() {
		// federatedUserID doubles as both the sessionID and userID argument
		// to BeginAuthorization purely as a correlation trick: Consumer
		// treats both as opaque labels, so passing the same freshly minted
		// id as both lets CompleteAuthorization's resulting credential's
		// UserID field hand this same id straight back on /callback,
		// without requiring any change to the already-built oauthconsumer
		// package. It then becomes the durable MCP user identity minted
		// into the access token's subject claim, which is exactly the key
		// GetFreshCredential looks up later during session binding.
		federatedUserID := uuid.NewString()
		if err := rt.pending.put(r.Context(), federatedUserID, req); err != nil {
			writeJSONError(w, apierr.System(err, "failed to park pending authorization"))
			return
		}
		authURL, err := rt.consumer.BeginAuthorization(r.Context(), federatedUserID, federatedUserID)
		if err != nil {
			logging.Warn("HTTPRouter", "begin upstream authorization failed: %s", err)
			redirectAuthorizeError(w, r, redirectURI, state, "server_error")
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}

	userID := uuid.NewString()
	code, err := rt.server.Authorize(r.Context(), clientID, userID, redirectURI, scopes, codeChallenge, codeChallengeMethod)
	if err != nil {
		redirectAuthorizeError(w, r, redirectURI, state, "server_error")
		return
	}
	redirectWithCode(w, r, redirectURI, code, state)
}

// handleCallback resolves the upstream provider's redirect back to this
// server, per spec section 4.4 step 3, and completes the parked MCP
// authorize request by minting its authorization code.
func (rt *Router) handleCallback(w http.ResponseWriter, r *http.Request) {
	if rt.consumer == nil || !rt.consumer.Enabled() {
		http.Error(w, "no upstream provider configured", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	cred, err := rt.consumer.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		logging.Warn("HTTPRouter", "upstream callback failed: %s", err)
		http.Error(w, "upstream authorization failed", http.StatusBadGateway)
		return
	}

	req, err := rt.pending.take(r.Context(), cred.UserID)
	if err != nil {
		logging.Warn("HTTPRouter", "no pending authorization for federated user: %s", err)
		http.Error(w, "authorization request expired or unknown", http.StatusBadRequest)
		return
	}

	mcpCode, err := rt.server.Authorize(r.Context(), req.ClientID, cred.UserID, req.RedirectURI, req.Scopes, req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		redirectAuthorizeError(w, r, req.RedirectURI, req.ClientState, "server_error")
		return
	}
	redirectWithCode(w, r, req.RedirectURI, mcpCode, req.ClientState)
}

// handleToken implements the token endpoint's two grant types, per spec
// section 4.4's token flow.
func (rt *Router) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "failed to parse form body")
		return
	}

	clientID := r.PostForm.Get("client_id")
	grantType := r.PostForm.Get("grant_type")

	switch grantType {
	case "authorization_code":
		code := r.PostForm.Get("code")
		redirectURI := r.PostForm.Get("redirect_uri")
		verifier := r.PostForm.Get("code_verifier")
		if code == "" || redirectURI == "" || clientID == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code, redirect_uri, and client_id are required")
			return
		}
		tp, err := rt.server.ExchangeCode(r.Context(), code, clientID, redirectURI, verifier)
		if err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid or expired authorization code")
			return
		}
		writeTokenResponse(w, tp.AccessToken, tp.RefreshToken, tp.TokenType, tp.Scope, tp.ExpiresIn)

	case "refresh_token":
		refreshToken := r.PostForm.Get("refresh_token")
		if refreshToken == "" || clientID == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "refresh_token and client_id are required")
			return
		}
		tp, err := rt.server.RefreshExchange(r.Context(), refreshToken, clientID)
		if err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid or expired refresh token")
			return
		}
		writeTokenResponse(w, tp.AccessToken, tp.RefreshToken, tp.TokenType, tp.Scope, tp.ExpiresIn)

	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token")
	}
}

// handleRegister implements RFC 7591 dynamic client registration.
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !rt.dynamicRegistration {
		http.Error(w, "dynamic client registration is disabled", http.StatusForbidden)
		return
	}

	var body struct {
		ClientName   string   `json:"client_name"`
		RedirectURIs []string `json:"redirect_uris"`
		TokenAuth    string   `json:"token_endpoint_auth_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "failed to parse registration request")
		return
	}
	if len(body.RedirectURIs) == 0 {
		writeOAuthError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uris is required")
		return
	}
	for _, uri := range body.RedirectURIs {
		if err := validateRedirectURIScheme(uri); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_redirect_uri", err.Error())
			return
		}
	}

	public := body.TokenAuth == "none"
	client, secret, err := rt.server.RegisterClient(r.Context(), body.ClientName, body.RedirectURIs, public)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to register client")
		return
	}

	resp := map[string]interface{}{
		"client_id":                  client.ClientID,
		"client_name":                client.ClientName,
		"redirect_uris":              client.RedirectURIs,
		"grant_types":                client.GrantTypes,
		"token_endpoint_auth_method": client.TokenEndpointAuthMethod,
	}
	if secret != "" {
		resp["client_secret"] = secret
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleAuthServerMetadata serves the RFC 8414 discovery document.
func (rt *Router) handleAuthServerMetadata(w http.ResponseWriter, r *http.Request) {
	md := rt.server.Metadata(rt.baseURL)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(md)
}

// handleProtectedResourceMetadata serves the RFC 9728 discovery document.
// A path suffix after the well-known prefix is echoed back into the
// resource URL, per spec section 6's "/.well-known/oauth-protected-resource[/path]".
func (rt *Router) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	const prefix = "/.well-known/oauth-protected-resource"
	resourceURL := rt.baseURL
	if suffix := strings.TrimPrefix(r.URL.Path, prefix); suffix != "" {
		resourceURL += suffix
	}
	md := oauthserver.ProtectedResource(resourceURL, rt.baseURL, rt.scopesSupported)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(md)
}

func redirectWithCode(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func redirectAuthorizeError(w http.ResponseWriter, r *http.Request, redirectURI, state, errCode string) {
	if redirectURI == "" {
		writeOAuthError(w, http.StatusBadRequest, errCode, "authorization request failed")
		return
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, errCode, "authorization request failed")
		return
	}
	q := u.Query()
	q.Set("error", errCode)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func writeTokenResponse(w http.ResponseWriter, accessToken, refreshToken, tokenType, scope string, expiresIn int64) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    tokenType,
		"expires_in":    expiresIn,
		"scope":         scope,
	})
}

func writeOAuthError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}

func writeJSONError(w http.ResponseWriter, e *apierr.Error) {
	if challenge := e.WWWAuthenticate(); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":             e.Code,
		"error_description": e.Message,
		"errorCode":         e.Code,
	})
}

var errInvalidRedirectScheme = errors.New("redirect_uri must use https, or http on localhost")

func validateRedirectURIScheme(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		return nil
	}
	host := u.Hostname()
	if u.Scheme == "http" && (host == "localhost" || host == "127.0.0.1" || host == "::1") {
		return nil
	}
	return errInvalidRedirectScheme
}
