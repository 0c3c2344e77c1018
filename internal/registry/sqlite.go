package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	createCacheTable = `CREATE TABLE IF NOT EXISTS registry_cache (
		fingerprint TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload BLOB,
		message TEXT NOT NULL DEFAULT '',
		stored_at INTEGER NOT NULL
	)`

	selectCacheEntry = `SELECT kind, payload, message, stored_at FROM registry_cache WHERE fingerprint = ? AND stored_at >= ?`

	deleteExpiredEntries = `DELETE FROM registry_cache WHERE stored_at < ?`

	upsertCacheEntry = `INSERT INTO registry_cache (fingerprint, kind, payload, message, stored_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET kind = excluded.kind, payload = excluded.payload, message = excluded.message, stored_at = excluded.stored_at`
)

// SQLiteStore persists outcomes in the registry_cache table of a SQLite
// database so lookups survive between runs.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (creating when needed) the database at path
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	store, err := newSQLiteStore(db, ttl)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newSQLiteStore(db *sql.DB, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if _, err := db.Exec(createCacheTable); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	var (
		kind, message string
		payload       []byte
		storedAt      int64
	)

	err := s.db.QueryRowContext(ctx, selectCacheEntry, fingerprint, s.cutoff()).
		Scan(&kind, &payload, &message, &storedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	outcome, err := decodeOutcome(kind, payload, message)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Outcome: outcome, StoredAt: time.Unix(0, storedAt)}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, fingerprint string, entry Entry) error {
	kind, payload, message, err := encodeOutcome(entry.Outcome)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, deleteExpiredEntries, s.cutoff()); err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertCacheEntry,
		fingerprint, kind, payload, message, entry.StoredAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
