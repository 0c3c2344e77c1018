package registry

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached outcome stays valid
const DefaultTTL = 6 * time.Hour

// Entry is a stored outcome with the time it was stored
type Entry struct {
	Outcome  Outcome
	StoredAt time.Time
}

// Store persists cacheable outcomes by fingerprint. Implementations drop
// entries older than their TTL.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Entry, bool, error)
	Put(ctx context.Context, fingerprint string, entry Entry) error
	Close() error
}

// MemoryStore keeps outcomes in a map and prunes expired entries on every
// read and write. It is not safe for concurrent use.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (Entry, bool, error) {
	s.prune()
	entry, ok := s.entries[fingerprint]
	return entry, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, fingerprint string, entry Entry) error {
	s.prune()
	s.entries[fingerprint] = entry
	return nil
}

func (s *MemoryStore) Close() error {
	s.entries = make(map[string]Entry)
	return nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	s.prune()
	return len(s.entries)
}

func (s *MemoryStore) prune() {
	cutoff := s.now().Add(-s.ttl)
	for key, entry := range s.entries {
		if entry.StoredAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}
