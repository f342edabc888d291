package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

const (
	// DefaultMaxChunkSize is the payload size above which Append splits the
	// event into numbered chunks.
	DefaultMaxChunkSize = 64 * 1024
	// DefaultCompressionThreshold is the payload size above which chunks are
	// zstd-compressed before storage.
	DefaultCompressionThreshold = 1024
)

// Event is a single outbound message recorded against a stream.
type Event struct {
	StreamID  string
	EventID   uint64
	Timestamp time.Time
	Kind      string
	Payload   []byte
}

// envelope is the JSON record stored in the KV store for one event. Large
// payloads are split across Chunks and reassembled transparently by Replay.
type envelope struct {
	EventID     uint64    `json:"eventId"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	Payload     []byte    `json:"payload,omitempty"`
	Chunks      int       `json:"chunks,omitempty"`
	Compressed  bool      `json:"compressed,omitempty"`
	TotalLength int       `json:"totalLength,omitempty"`
}

// Store is the per-stream append-only event log. It is safe for concurrent
// use; eventId allocation is serialized per streamId so ids never collide
// even under concurrent Append calls against the same stream.
type Store struct {
	kv kvstore.Store

	maxChunkSize         int
	compressionThreshold int

	seqMu sync.Mutex
	seq   map[string]uint64 // streamId -> last allocated eventId, cached

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Option configures a Store.
type Option func(*Store)

// WithMaxChunkSize overrides DefaultMaxChunkSize.
func WithMaxChunkSize(n int) Option {
	return func(s *Store) { s.maxChunkSize = n }
}

// WithCompressionThreshold overrides DefaultCompressionThreshold.
func WithCompressionThreshold(n int) Option {
	return func(s *Store) { s.compressionThreshold = n }
}

// New creates an event Store backed by kv.
func New(kv kvstore.Store, opts ...Option) (*Store, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("eventstore: create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("eventstore: create zstd decoder: %w", err)
	}

	s := &Store{
		kv:                    kv,
		maxChunkSize:          DefaultMaxChunkSize,
		compressionThreshold:  DefaultCompressionThreshold,
		seq:                   make(map[string]uint64),
		encoder:               enc,
		decoder:               dec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func streamIndexKey(streamID string) string {
	return "events/_streams/" + streamID
}

func eventKeyPrefix(streamID string) string {
	return "events/" + streamID + "/"
}

func eventKey(streamID string, eventID uint64) string {
	// Zero-padded so lexical key order matches numeric eventId order.
	return fmt.Sprintf("%s%020d", eventKeyPrefix(streamID), eventID)
}

func chunkKey(streamID string, eventID uint64, index int) string {
	return fmt.Sprintf("%s/chunk/%04d", eventKey(streamID, eventID), index)
}

// nextEventID allocates the next eventId for streamID. It first trusts an
// in-memory cache (the common case: this process appended every prior
// event) and falls back to scanning the KV store so a restarted process
// with persistence enabled picks up where it left off.
func (s *Store) nextEventID(ctx context.Context, streamID string) (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	last, cached := s.seq[streamID]
	if !cached {
		entries, err := s.kv.List(ctx, eventKeyPrefix(streamID))
		if err != nil {
			return 0, fmt.Errorf("eventstore: scan existing events for %s: %w", streamID, err)
		}
		for _, e := range entries {
			if strings.Contains(e.Key, "/chunk/") {
				continue
			}
			idStr := strings.TrimPrefix(e.Key, eventKeyPrefix(streamID))
			id, err := strconv.ParseUint(idStr, 10, 64)
			if err == nil && id > last {
				last = id
			}
		}
	}

	next := last + 1
	s.seq[streamID] = next
	return next, nil
}

// Append records payload against streamID, returning the eventId assigned
// to it. Large payloads are chunked and, above compressionThreshold,
// zstd-compressed.
func (s *Store) Append(ctx context.Context, streamID, kind string, payload []byte) (uint64, error) {
	eventID, err := s.nextEventID(ctx, streamID)
	if err != nil {
		return 0, err
	}

	env := envelope{
		EventID:     eventID,
		Timestamp:   time.Now(),
		Kind:        kind,
		TotalLength: len(payload),
	}

	if len(payload) <= s.maxChunkSize {
		env.Payload = payload
	} else {
		chunks := chunkPayload(payload, s.maxChunkSize)
		env.Chunks = len(chunks)
		compress := len(payload) > s.compressionThreshold
		env.Compressed = compress
		for i, chunk := range chunks {
			stored := chunk
			if compress {
				stored = s.encoder.EncodeAll(chunk, nil)
			}
			if err := s.kv.Set(ctx, chunkKey(streamID, eventID, i), stored, 0); err != nil {
				return 0, fmt.Errorf("eventstore: store chunk %d of event %d: %w", i, eventID, err)
			}
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("eventstore: marshal envelope: %w", err)
	}
	if err := s.kv.Set(ctx, eventKey(streamID, eventID), data, 0); err != nil {
		return 0, fmt.Errorf("eventstore: store event %d: %w", eventID, err)
	}
	if err := s.kv.Set(ctx, streamIndexKey(streamID), []byte(streamID), 0); err != nil {
		logging.Warn("EventStore", "failed to record stream index for %s: %s", streamID, err)
	}

	return eventID, nil
}

func chunkPayload(payload []byte, size int) [][]byte {
	var chunks [][]byte
	for i := 0; i < len(payload); i += size {
		end := i + size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[i:end])
	}
	return chunks
}

// Replay returns every event appended to streamID with id greater than
// afterEventID, in order. An afterEventID past the highest known id simply
// yields no events - a resuming client is treated as caught up, not as an
// error and not as something to block on.
func (s *Store) Replay(ctx context.Context, streamID string, afterEventID uint64) ([]Event, error) {
	entries, err := s.kv.List(ctx, eventKeyPrefix(streamID))
	if err != nil {
		return nil, fmt.Errorf("eventstore: list events for %s: %w", streamID, err)
	}

	var envelopes []envelope
	for _, e := range entries {
		if strings.Contains(e.Key, "/chunk/") {
			continue
		}
		var env envelope
		if err := json.Unmarshal(e.Value, &env); err != nil {
			return nil, fmt.Errorf("eventstore: decode event at %s: %w", e.Key, err)
		}
		if env.EventID > afterEventID {
			envelopes = append(envelopes, env)
		}
	}

	sort.Slice(envelopes, func(i, j int) bool { return envelopes[i].EventID < envelopes[j].EventID })

	events := make([]Event, 0, len(envelopes))
	for _, env := range envelopes {
		payload := env.Payload
		if env.Chunks > 0 {
			payload, err = s.reassemble(ctx, streamID, env)
			if err != nil {
				return nil, err
			}
		}
		events = append(events, Event{
			StreamID:  streamID,
			EventID:   env.EventID,
			Timestamp: env.Timestamp,
			Kind:      env.Kind,
			Payload:   payload,
		})
	}
	return events, nil
}

func (s *Store) reassemble(ctx context.Context, streamID string, env envelope) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, env.TotalLength))
	for i := 0; i < env.Chunks; i++ {
		raw, err := s.kv.Get(ctx, chunkKey(streamID, env.EventID, i))
		if err != nil {
			return nil, fmt.Errorf("eventstore: fetch chunk %d of event %d: %w", i, env.EventID, err)
		}
		if env.Compressed {
			decoded, err := s.decoder.DecodeAll(raw, nil)
			if err != nil {
				return nil, fmt.Errorf("eventstore: decompress chunk %d of event %d: %w", i, env.EventID, err)
			}
			raw = decoded
		}
		if _, err := buf.Write(raw); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ListStreams returns every streamId that has at least one recorded event.
func (s *Store) ListStreams(ctx context.Context) ([]string, error) {
	entries, err := s.kv.List(ctx, "events/_streams/")
	if err != nil {
		return nil, fmt.Errorf("eventstore: list streams: %w", err)
	}
	streams := make([]string, 0, len(entries))
	for _, e := range entries {
		streams = append(streams, string(e.Value))
	}
	sort.Strings(streams)
	return streams, nil
}

// CleanupOldEvents deletes every event for streamID except the most recent
// keepLast, along with their chunks. Intended to be driven by a periodic
// ticker (spec section 5: "a global ticker runs the event-store cleanup
// every ~6h").
func (s *Store) CleanupOldEvents(ctx context.Context, streamID string, keepLast int) error {
	entries, err := s.kv.List(ctx, eventKeyPrefix(streamID))
	if err != nil {
		return fmt.Errorf("eventstore: list events for cleanup of %s: %w", streamID, err)
	}

	var envelopes []envelope
	for _, e := range entries {
		if strings.Contains(e.Key, "/chunk/") {
			continue
		}
		var env envelope
		if err := json.Unmarshal(e.Value, &env); err != nil {
			continue
		}
		envelopes = append(envelopes, env)
	}
	sort.Slice(envelopes, func(i, j int) bool { return envelopes[i].EventID < envelopes[j].EventID })

	if len(envelopes) <= keepLast {
		return nil
	}

	toDelete := envelopes[:len(envelopes)-keepLast]
	for _, env := range toDelete {
		for i := 0; i < env.Chunks; i++ {
			_ = s.kv.Delete(ctx, chunkKey(streamID, env.EventID, i))
		}
		if err := s.kv.Delete(ctx, eventKey(streamID, env.EventID)); err != nil {
			return fmt.Errorf("eventstore: delete event %d: %w", env.EventID, err)
		}
	}
	logging.Debug("EventStore", "cleaned up %d old events for stream=%s", len(toDelete), streamID)
	return nil
}

// Close releases the zstd encoder/decoder. It does not close the
// underlying kvstore.Store, which the caller owns.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return nil
}

var _ io.Closer = (*Store)(nil)
