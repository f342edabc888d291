package httprouter

import (
	"net/http"

	"github.com/mcpkit/mcpserver/internal/authmw"
	"github.com/mcpkit/mcpserver/internal/config"
	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/internal/oauthconsumer"
	"github.com/mcpkit/mcpserver/internal/oauthserver"
)

// Router assembles spec section 6's HTTP surface onto a single mux, mirroring
// the teacher's OAuthHTTPServer.CreateMux (internal/server/oauth_http.go) but
// built on this repo's own oauthserver/oauthconsumer/authmw packages instead
// of the teacher's now-superseded github.com/giantswarm/mcp-oauth.
type Router struct {
	server   *oauthserver.Server
	consumer *oauthconsumer.Consumer
	auth     *authmw.Middleware
	pending  *pendingAuthStore

	mcpHandler http.Handler

	transport config.TransportConfig
	auth2     config.AuthConfig

	baseURL             string
	dynamicRegistration bool
	scopesSupported     []string
}

// Options bundles Router's construction-time dependencies.
type Options struct {
	Server   *oauthserver.Server
	Consumer *oauthconsumer.Consumer
	Auth     *authmw.Middleware
	KV       kvstore.Store

	MCPHandler http.Handler

	Transport config.TransportConfig
	Auth2     config.AuthConfig

	BaseURL             string
	DynamicRegistration bool
	ScopesSupported     []string
}

// NewRouter builds a Router from opts.
func NewRouter(opts Options) *Router {
	return &Router{
		server:              opts.Server,
		consumer:            opts.Consumer,
		auth:                opts.Auth,
		pending:             newPendingAuthStore(opts.KV),
		mcpHandler:          opts.MCPHandler,
		transport:           opts.Transport,
		auth2:               opts.Auth2,
		baseURL:             opts.BaseURL,
		dynamicRegistration: opts.DynamicRegistration,
		scopesSupported:     opts.ScopesSupported,
	}
}

// discoveryAndHealthPaths are exempt from rate limiting: probes and
// discovery documents are polled frequently by infrastructure and by MCP
// clients bootstrapping a connection, and throttling them would make the
// server appear broken rather than busy.
var discoveryAndHealthPaths = map[string]bool{
	"/health": true,
	"/status": true,
	"/.well-known/oauth-authorization-server": true,
	"/.well-known/oauth-protected-resource":   true,
}

// Handler assembles the full mux: CORS wraps everything; rate limiting
// wraps every route individually so /mcp can run auth first (populating
// the RequestContext the limiter keys on) while every other route limits
// by client IP directly.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	limited := func(h http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(rt.transport.RateLimit, discoveryAndHealthPaths)(h)
	}

	mux.Handle("/health", limited(rt.handleHealth))
	mux.Handle("/status", limited(rt.handleStatus))

	mux.Handle("/.well-known/oauth-authorization-server", limited(rt.handleAuthServerMetadata))
	mux.Handle("/.well-known/oauth-protected-resource", limited(rt.handleProtectedResourceMetadata))
	mux.Handle("/.well-known/oauth-protected-resource/", limited(rt.handleProtectedResourceMetadata))

	// Each OAuth endpoint is mounted under both the bare path spec section
	// 6's table names and the /oauth/-prefixed path
	// internal/oauthserver.Metadata actually advertises; see
	// internal/authmw/paths.go's alwaysSkipExact for the matching list.
	for _, p := range []string{"/register", "/oauth/register"} {
		mux.Handle(p, limited(rt.handleRegister))
	}
	for _, p := range []string{"/authorize", "/oauth/authorize"} {
		mux.Handle(p, limited(rt.handleAuthorize))
	}
	for _, p := range []string{"/token", "/oauth/token"} {
		mux.Handle(p, limited(rt.handleToken))
	}
	for _, p := range []string{
		"/callback", "/oauth/callback", "/auth/callback",
		"/api/v1/auth/callback", "/api/v1/oauth/callback",
	} {
		mux.Handle(p, limited(rt.handleCallback))
	}

	mcp := rateLimitMiddleware(rt.transport.RateLimit, nil)(rt.mcpHandler)
	if rt.auth != nil {
		mcp = rt.auth.Wrap(mcp)
	}
	mux.Handle("/mcp", mcp)

	return corsMiddleware(rt.transport)(mux)
}
