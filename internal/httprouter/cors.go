package httprouter

import (
	"net/http"
	"strings"

	"github.com/mcpkit/mcpserver/internal/config"
)

// corsMiddleware applies spec section 6's CORS policy: when enabled, it
// echoes the request's Origin back when that Origin is allowed (any Origin
// is allowed when cfg.CORSOrigins is empty or lists "*"; a literal "*" is
// never sent) and exposes Mcp-Session-Id so browser-based MCP clients can read the session
// binding header off a cross-origin response.
//
// Hand-written rather than borrowed from a library: none of the pack's
// CORS helpers (gin-contrib/cors, rakunlabs/ada's cors middleware) attach
// to a bare net/http.Handler without adopting their owning framework, and
// this is a handful of header writes, the same texture as the teacher's
// other small hand-rolled middleware (SecurityHeadersMiddleware in
// HerbHall-subnetree/internal/server/middleware.go).
func corsMiddleware(cfg config.TransportConfig) func(http.Handler) http.Handler {
	if !cfg.CORSEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowedOrigin(cfg.CORSOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Mcp-Session-Id, Last-Event-ID")
			w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
