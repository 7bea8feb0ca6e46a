package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for derived read models such as financial summaries. Every key is
// prefixed with a generation counter; a committed write bumps the
// generation, which invalidates every cached read at once.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		prefix:  "league",
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	if err := s.primary.InTx(ctx, fn); err != nil {
		return err
	}
	// Invalidate; next read will re-populate under the new generation.
	if err := s.rdb.Incr(ctx, s.generationKey()).Err(); err != nil {
		slog.Warn("cache generation bump failed", "error", err)
	}
	return nil
}

// --- Passthrough ---

func (s *CachedStore) View(ctx context.Context, fn func(q Querier) error) error {
	return s.primary.View(ctx, fn)
}

// --- Read-through helpers ---

// Cached returns the bytes stored under key for the current generation,
// and that generation. Callers pass gen back to Cache after a miss so a
// result computed across a commit is never stored as current.
func (s *CachedStore) Cached(ctx context.Context, key string) ([]byte, int64, bool) {
	gen, err := s.generation(ctx)
	if err != nil {
		return nil, -1, false
	}
	data, err := s.rdb.Get(ctx, s.key(gen, key)).Bytes()
	if err != nil {
		return nil, gen, false
	}
	return data, gen, true
}

// Cache stores data under key for gen, unless a write has committed since
// gen was read. Failures are logged and otherwise ignored; the cache is
// never authoritative.
func (s *CachedStore) Cache(ctx context.Context, key string, gen int64, data []byte) {
	if gen < 0 {
		return
	}
	current, err := s.generation(ctx)
	if err != nil || current != gen {
		return
	}
	full := s.key(gen, key)
	if err := s.rdb.Set(ctx, full, data, s.ttl).Err(); err != nil {
		slog.Warn("cache write failed", "key", full, "error", err)
	}
}

func (s *CachedStore) generation(ctx context.Context) (int64, error) {
	gen, err := s.rdb.Get(ctx, s.generationKey()).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return gen, nil
}

func (s *CachedStore) key(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", s.prefix, gen, key)
}

func (s *CachedStore) generationKey() string { return fmt.Sprintf("%s:generation", s.prefix) }
