package authmw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mcpkit/mcpserver/internal/apierr"
	"github.com/mcpkit/mcpserver/internal/config"
	"github.com/mcpkit/mcpserver/internal/oauthconsumer"
	"github.com/mcpkit/mcpserver/internal/oauthserver"
	"github.com/mcpkit/mcpserver/internal/reqcontext"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// Challenge carries the URLs rendered into WWW-Authenticate headers and
// RFC 9728 protected-resource metadata responses, so a client can discover
// where to register and authorize without out-of-band configuration.
type Challenge struct {
	Realm               string
	ResourceMetadataURL string
	AuthorizationURL    string
	RegistrationURL     string
}

// Middleware authenticates inbound HTTP requests per spec section 4.6.
type Middleware struct {
	server   *oauthserver.Server
	consumer *oauthconsumer.Consumer
	cfg      config.AuthConfig
	ch       Challenge
}

// New builds a Middleware. consumer may be nil if no upstream provider is
// configured (session binding is then skipped regardless of cfg).
func New(server *oauthserver.Server, consumer *oauthconsumer.Consumer, cfg config.AuthConfig, ch Challenge) *Middleware {
	return &Middleware{server: server, consumer: consumer, cfg: cfg, ch: ch}
}

// Wrap returns next protected by this middleware. Requests to paths the
// policy exempts (or all requests, if auth is disabled) pass through
// unmodified; everything else must carry a valid bearer token.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.requiresAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeError(w, m.cfg, apierr.Unauthorized("invalid_request", "missing bearer token").
				WithChallenge(m.ch.Realm, "", "invalid_request", m.ch.ResourceMetadataURL, m.ch.AuthorizationURL, m.ch.RegistrationURL))
			return
		}

		claims, err := m.server.VerifyAccessToken(r.Context(), token)
		if err != nil {
			code := "invalid_token"
			guidance := "re-authorize; the access token is no longer valid"
			action := "reauthorize"
			if errors.Is(err, oauthserver.ErrExpired) {
				code = "mcp_token_expired"
				guidance = "refresh the access token using the refresh_token grant"
				action = "refresh_token"
			}
			writeError(w, m.cfg, apierr.Unauthorized(code, "access token invalid or expired").
				WithGuidance(guidance).WithAction(action).
				WithChallenge(m.ch.Realm, "", code, m.ch.ResourceMetadataURL, m.ch.AuthorizationURL, m.ch.RegistrationURL))
			return
		}

		scopes := claims.Scopes()
		actionTaken := ""

		if m.cfg.SessionBindingEnabled && m.consumer.Enabled() {
			_, refreshed, err := m.consumer.GetFreshCredential(r.Context(), claims.Subject, m.consumer.ProviderID())
			if err != nil {
				logging.Warn("AuthMiddleware", "upstream session binding failed for user=%s: %v", claims.Subject, err)
				writeError(w, m.cfg, apierr.Forbidden("third_party_reauth_required", "upstream provider session expired").
					WithGuidance("the user must re-authorize with the upstream provider").
					WithAction("reauthorize"))
				return
			}
			if refreshed {
				actionTaken = "third_party_token_refreshed"
				logging.Audit(logging.AuditEvent{Action: "third_party_token_refreshed", Outcome: "success", UserID: claims.Subject})
			} else {
				actionTaken = "upstream_session_valid"
			}
		}

		rc := reqcontext.New(requestID(r), "http")
		rc.AuthenticatedUserID = claims.Subject
		rc.ClientID = claims.ClientID
		rc.Scopes = scopes
		if actionTaken != "" {
			rc.Metadata["actionTaken"] = actionTaken
		}

		next.ServeHTTP(w, r.WithContext(reqcontext.WithRequestContext(r.Context(), rc)))
	})
}

// requiresAuth implements spec section 4.6's path policy: /mcp is always
// authenticated, the discovery/registration/token endpoints never are, and
// cfg.HTTPSkip/HTTPRequire override both in that order (Require wins).
func (m *Middleware) requiresAuth(path string) bool {
	if !m.cfg.Enabled || !m.cfg.HTTPEnabled {
		return false
	}
	if path == "/mcp" || matchesAny(m.cfg.HTTPRequire, path) {
		return true
	}
	if alwaysSkipped(path) || matchesAny(m.cfg.HTTPSkip, path) {
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return token, token != ""
}

// requestID returns the client-supplied Mcp-Request-Id header if present,
// else mints a fresh one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("Mcp-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}
