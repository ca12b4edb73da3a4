// Package cache stores recommendation results in Redis. Keys are scoped to
// the model fingerprint, so results from a previous catalog version are never
// served after a rebuild.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
)

const keyPrefix = "recommend:"

// Store is the subset of pkg/redis.Client the cache needs.
type Store interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Options configures a ResultCache.
type Options struct {
	TTL time.Duration
	// FoldCase must match the resolver setting: when the resolver ignores
	// case, so does the key.
	FoldCase bool
}

// Stats reports cache effectiveness since start.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// ResultCache caches successful recommendation results.
type ResultCache struct {
	store  Store
	prefix string
	opts   Options
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache for results of the model identified by fingerprint.
func New(store Store, fingerprint string, opts Options) *ResultCache {
	fp := fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return &ResultCache{
		store:  store,
		prefix: keyPrefix + fp + ":",
		opts:   opts,
		logger: slog.Default().With("component", "result-cache"),
	}
}

// Get returns a cached result for (query, k).
func (c *ResultCache) Get(ctx context.Context, query string, k int) (*recommender.Result, bool) {
	key := c.Key(query, k)
	data, ok, err := c.store.Lookup(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	var result recommender.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	result.Query = query
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

// Set stores result for (query, k).
func (c *ResultCache) Set(ctx context.Context, query string, k int, result *recommender.Result) {
	key := c.Key(query, k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.opts.TTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes it once per key across
// concurrent callers. Errors, including no-match outcomes, are not cached.
// The boolean reports a cache hit.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	query string,
	k int,
	computeFn func() (*recommender.Result, error),
) (*recommender.Result, bool, error) {
	if result, ok := c.Get(ctx, query, k); ok {
		return result, true, nil
	}
	key := c.Key(query, k)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, k, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	shared := *val.(*recommender.Result)
	shared.Query = query
	return &shared, false, nil
}

// Invalidate removes every cached recommendation, for all fingerprints.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counters.
func (c *ResultCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Key returns the Redis key for (query, k).
func (c *ResultCache) Key(query string, k int) string {
	raw := fmt.Sprintf("%s\x00k=%d", c.normalize(query), k)
	sum := sha256.Sum256([]byte(raw))
	return c.prefix + hex.EncodeToString(sum[:8])
}

// normalize mirrors the resolver: surrounding whitespace never matters, case
// only when folding.
func (c *ResultCache) normalize(query string) string {
	query = strings.TrimSpace(query)
	if c.opts.FoldCase {
		query = strings.ToLower(query)
	}
	return query
}
