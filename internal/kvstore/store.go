package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist (or has
// expired).
var ErrNotFound = errors.New("kvstore: key not found")

// Entry is a stored value along with its expiry, as returned by listing
// operations that need both.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time // zero means no expiry
}

// Store is the KV substrate every other persistence concern in this
// framework is built on. Implementations must be safe for concurrent use.
type Store interface {
	// Set stores value under key. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves the value stored under key. Returns ErrNotFound if the
	// key is absent or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every entry whose key has the given prefix, in no
	// particular order.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// CompareAndDelete atomically deletes key if and only if its current
	// value equals expected, returning true if the delete happened. Used
	// to consume single-use values (OAuth authorization codes) exactly
	// once under concurrent redemption attempts.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// Close releases any resources (background goroutines, file handles)
	// held by the store.
	Close() error
}
