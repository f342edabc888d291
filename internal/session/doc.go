// Package session implements the Session Manager and Session Store: UUIDv4
// session creation, an in-memory active set with write-through persistence
// to internal/kvstore, idle-timeout sweeping, and transport/expiry
// validation.
//
// It generalizes the teacher's internal/aggregator.SessionRegistry (a
// mutex-protected map of per-session connection state with a background
// cleanup goroutine) from "which OAuth-protected upstream servers has this
// session connected to" into the spec's transport-agnostic Session entity:
// userId, clientId, scopes, transport type, and activity timestamps,
// persisted so MCP_ENABLE_SESSION_PERSISTENCE can survive a restart.
package session
