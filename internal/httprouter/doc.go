// Package httprouter assembles the HTTP surface of spec section 6: it
// mounts the OAuth 2.1 authorization server's endpoints, the well-known
// discovery documents, liveness probes, and the MCP transport handler onto
// one mux, and wraps the whole thing in CORS and per-client rate limiting.
//
// Grounded on the teacher's internal/server/oauth_http.go
// (OAuthHTTPServer.CreateMux/setupOAuthRoutes/setupMCPRoutes route-mounting
// shape), rewired from that file's now-superseded github.com/giantswarm/
// mcp-oauth dependency onto this repo's own internal/oauthserver,
// internal/oauthconsumer, and internal/authmw. The rate limiter is grounded
// on the pack's HerbHall-subnetree/internal/server/middleware.go
// (ipRateLimiter: a mutex-protected map of golang.org/x/time/rate.Limiter,
// one per key, with idle-entry eviction), generalized here to key by
// clientId on authenticated routes rather than always by IP, per spec's
// HTTP Router component.
package httprouter
