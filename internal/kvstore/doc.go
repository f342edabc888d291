// Package kvstore provides the single key/value substrate that sessions,
// events, credentials, and OAuth state are all built on top of.
//
// Keys are hierarchical strings ("sessions/<id>", "oauth/codes/<code>",
// "credentials/<userId>/<providerId>") matching the persisted layout in the
// project's environment configuration table. Two implementations are
// provided: Memory, a mutex-protected map with a background TTL-cleanup
// goroutine, and SQLite, a modernc.org/sqlite-backed store used when
// MCP_ENABLE_SESSION_PERSISTENCE is set. Both satisfy the same Store
// interface so the rest of the framework never knows which backend it is
// talking to.
package kvstore
