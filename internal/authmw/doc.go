// Package authmw implements the authentication middleware described in
// spec section 4.6: bearer token extraction, MCP access token verification
// against internal/oauthserver, optional upstream session-binding against
// internal/oauthconsumer, and rendering of RFC 6750 WWW-Authenticate
// challenges plus the MCP_AUTH_ERROR_CUSTOM_HEADERS configured in
// internal/config.
//
// Grounded on the teacher's internal/server/oauth_http.go
// createAccessTokenInjectorMiddleware (http.Handler-wrapping shape,
// context-value injection for downstream use) and
// internal/aggregator/server.go's clientSessionIDMiddleware (the
// header-to-context-value idiom). Unlike the teacher, which delegates
// token *verification* to github.com/giantswarm/mcp-oauth's
// oauthHandler.ValidateToken and only injects a token into context
// afterward, this middleware owns verification itself since
// internal/oauthserver is this repo's own authorization server rather
// than a wrapped external one.
package authmw
