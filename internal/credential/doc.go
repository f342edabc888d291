// Package credential implements the Credential Store: per-user,
// per-upstream-provider OAuth tokens (UpstreamCredential in the data
// model), persisted through internal/kvstore and optionally encrypted at
// rest.
//
// Grounded on internal/oauth.TokenStore's key/TTL/cleanup shape, but keyed
// by (userId, providerId) instead of (sessionId, issuer, scope) since
// credentials outlive any one session and are explicitly revoked rather
// than expired by session teardown. Encryption at rest reuses
// github.com/giantswarm/mcp-oauth/security.Encryptor (AES-256-GCM), the
// same mechanism the teacher wires into its own OAuth server storage.
package credential
