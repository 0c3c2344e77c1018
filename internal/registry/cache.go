package registry

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"saft-reconciliation-service/pkg/logger"
)

// ListPolicy says how a JSON array response is treated
type ListPolicy string

const (
	// ListDisallow rejects array responses as invalid_json
	ListDisallow ListPolicy = "disallow"
	// ListFirstDict uses the first object in an array response
	ListFirstDict ListPolicy = "first_dict"
	// ListPassthrough returns array responses unchanged
	ListPassthrough ListPolicy = "passthrough"
)

const (
	cacheFileName = "registry_cache.db"
	cacheDirName  = "saftrecon"
)

// Fingerprint is the cache key of a request: the URL plus the list policy,
// so callers expecting different response shapes never share an entry.
func Fingerprint(url string, policy ListPolicy) string {
	return url + "::list_policy=" + string(policy)
}

// CacheOptions controls where and how long outcomes are kept
type CacheOptions struct {
	// Dir is tried before the standard cache locations
	Dir string
	TTL time.Duration
	// Durable selects the SQLite store; otherwise only memory is used
	Durable bool
}

// Cache sits between the client and a Store. Store failures are logged and
// treated as misses so the lookup itself never fails because of the cache.
type Cache struct {
	store   Store
	durable bool
	now     func() time.Time
	logger  logger.Logger
}

// NewCache wraps store
func NewCache(store Store, log logger.Logger) *Cache {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	_, durable := store.(*SQLiteStore)
	return &Cache{
		store:   store,
		durable: durable,
		now:     time.Now,
		logger:  log.WithComponent("registry-cache"),
	}
}

// OpenCache opens a SQLite store in the first writable candidate directory
// and falls back to an in-memory store when none works.
func OpenCache(opts CacheOptions, log logger.Logger) *Cache {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if opts.Durable {
		for _, dir := range CandidateDirs(opts.Dir) {
			if !writableDir(dir) {
				continue
			}
			path := filepath.Join(dir, cacheFileName)
			store, err := NewSQLiteStore(path, ttl)
			if err != nil {
				log.WithError(err).WithField("path", path).Warn("Could not open durable registry cache")
				continue
			}
			log.WithField("path", path).Debug("Using durable registry cache")
			return NewCache(store, log)
		}
		log.Warn("No writable directory for the registry cache, using an in-memory cache")
	}

	return NewCache(NewMemoryStore(ttl), log)
}

// CandidateDirs lists the cache directories to try, in order, without
// duplicates: explicit, $XDG_CACHE_HOME/saftrecon, ~/.cache/saftrecon and a
// directory under the system temp dir.
func CandidateDirs(explicit string) []string {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, cacheDirName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".cache", cacheDirName))
	}
	candidates = append(candidates, filepath.Join(os.TempDir(), cacheDirName+"_cache"))

	seen := make(map[string]bool)
	unique := make([]string, 0, len(candidates))
	for _, dir := range candidates {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		unique = append(unique, dir)
	}
	return unique
}

func writableDir(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	check, err := os.CreateTemp(dir, ".writecheck-*")
	if err != nil {
		return false
	}
	name := check.Name()
	check.Close()
	os.Remove(name)
	return true
}

// Durable reports whether outcomes survive the process
func (c *Cache) Durable() bool {
	return c.durable
}

// Get returns the cached outcome for fingerprint
func (c *Cache) Get(ctx context.Context, fingerprint string) (Outcome, bool) {
	entry, ok, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Registry cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return entry.Outcome, true
}

// Put stores outcome when it is cacheable and reports whether it did
func (c *Cache) Put(ctx context.Context, fingerprint string, outcome Outcome) bool {
	if !Cacheable(outcome) {
		return false
	}
	if err := c.store.Put(ctx, fingerprint, Entry{Outcome: outcome, StoredAt: c.now()}); err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Registry cache write failed")
		return false
	}
	return true
}

// Close releases the underlying store
func (c *Cache) Close() error {
	return c.store.Close()
}
