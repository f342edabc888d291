package authmw

import "strings"

// alwaysSkipExact are the paths spec section 4.6 says are never
// authenticated, regardless of configuration. Both the bare paths spec
// section 6's table names and the /oauth/-prefixed paths
// internal/oauthserver.Metadata actually advertises are listed, since
// internal/httprouter mounts each OAuth endpoint under both forms; the
// callback aliases are spec section 6's full list verbatim.
var alwaysSkipExact = []string{
	"/status", "/health",
	"/register", "/authorize", "/token",
	"/oauth/register", "/oauth/authorize", "/oauth/token",
	"/callback", "/oauth/callback", "/auth/callback",
	"/api/v1/auth/callback", "/api/v1/oauth/callback",
}

// matchesAny reports whether path matches one of patterns. A pattern
// ending in "*" matches by prefix; any other pattern matches exactly.
func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(p, "*")) {
				return true
			}
			continue
		}
		if p == path {
			return true
		}
	}
	return false
}

// alwaysSkipped reports whether path is in the spec's hardcoded
// never-authenticate list, including the .well-known discovery tree.
func alwaysSkipped(path string) bool {
	if strings.HasPrefix(path, "/.well-known/") {
		return true
	}
	return matchesAny(alwaysSkipExact, path)
}
