// Package oauthserver implements the OAuth 2.1 authorization server this
// framework exposes to MCP clients: PKCE-required authorization codes
// (RFC 7636, S256 only), dynamic client registration (RFC 7591), and
// JWT access tokens with opaque rotating refresh tokens.
//
// Storage is built directly on internal/kvstore rather than the teacher's
// valkey/memory storage.TokenStore/ClientStore/FlowStore backends from
// github.com/giantswarm/mcp-oauth/storage - this module's own embedded KV
// Store plays the role the teacher hands to an external Valkey instance.
// PKCE generation is adapted from the teacher's pkg/oauth/pkce.go.
// Encryption at rest for refresh tokens reuses
// github.com/giantswarm/mcp-oauth/security.Encryptor, same as
// internal/credential.
package oauthserver
