package httprouter

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth answers Kubernetes-style liveness probes, matching the
// teacher's unauthenticated /health handler in
// internal/server/oauth_http.go's CreateMux.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleStatus reports a richer liveness snapshot, per spec section 6's
// /status entry.
func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
