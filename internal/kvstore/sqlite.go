package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// SQLite is a Store backed by a single-table SQLite database, used when
// MCP_ENABLE_SESSION_PERSISTENCE is set so sessions, events, and credentials
// survive a process restart. Uses the pure-Go modernc.org/sqlite driver so
// the binary stays cgo-free.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) a SQLite-backed store at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writes anyway

	const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("kvstore: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	if expiresAt != 0 && time.Now().UnixNano() > expiresAt {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, expires_at FROM kv WHERE key LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("kvstore: list %s: %w", prefix, err)
	}
	defer rows.Close()

	now := time.Now().UnixNano()
	var out []Entry
	for rows.Next() {
		var key string
		var value []byte
		var expiresAt int64
		if err := rows.Scan(&key, &value, &expiresAt); err != nil {
			return nil, fmt.Errorf("kvstore: scan row: %w", err)
		}
		if expiresAt != 0 && now > expiresAt {
			continue
		}
		entry := Entry{Key: key, Value: value}
		if expiresAt != 0 {
			entry.ExpiresAt = time.Unix(0, expiresAt)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLite) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("kvstore: begin cas tx for %s: %w", key, err)
	}
	defer tx.Rollback()

	var value []byte
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvstore: cas read %s: %w", key, err)
	}
	if (expiresAt != 0 && time.Now().UnixNano() > expiresAt) || !bytesEqual(value, expected) {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return false, fmt.Errorf("kvstore: cas delete %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("kvstore: commit cas for %s: %w", key, err)
	}
	return true, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// PurgeExpired deletes all expired rows, intended to be called from a
// periodic cleanup goroutine owned by whoever constructs the store.
func (s *SQLite) PurgeExpired(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at != 0 AND expires_at < ?`, time.Now().UnixNano())
	if err != nil {
		logging.Warn("KVStore", "sqlite purge failed: %s", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Debug("KVStore", "purged %d expired rows", n)
	}
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
