// Package eventstore implements the per-stream append-only event log that
// backs resumable SSE delivery.
//
// Every outbound MCP message written to a streamId is assigned a
// monotonically increasing eventId. Replay(streamId, afterEventId) returns
// every event appended with id greater than afterEventId, in order, with no
// duplicates and no gaps - the same guarantee the aggregator's SSE
// transport expects from the teacher's mark3labs/mcp-go session plumbing,
// reimplemented here against internal/kvstore so it can be replayed after a
// process restart when session persistence is enabled.
//
// Payloads larger than a configured threshold are stored as chunked
// entries (numbered, optionally compressed) and transparently reassembled
// on read; callers of Store never see the difference.
package eventstore
