// Package oauthconsumer bridges this server to an upstream third-party
// identity provider: it drives the authorization_code flow against that
// provider on a user's behalf, and keeps the resulting UpstreamCredential
// fresh via internal/credential, transparently refreshing it before it
// expires.
//
// It is adapted from the teacher's internal/oauth package, which drove the
// same flow per-remote-MCP-server for session-bound SSO across many
// upstream issuers at once (with a self-hosted CIMD, cross-cluster RFC 8693
// token exchange, and Teleport mTLS plumbing). This framework instead
// authenticates one user against one configured upstream provider
// (OAUTH_CONSUMER_*), so the per-server registry, CIMD hosting, and
// cross-cluster exchange machinery are dropped - only the OAuth
// client/state/redaction/refresh shape survives, generalized and pointed
// at internal/credential.Store instead of the teacher's in-memory
// TokenStore.
package oauthconsumer
