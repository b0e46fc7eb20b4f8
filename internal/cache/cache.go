// Package cache memoises ranked results in Redis, keyed by the executor
// fingerprint, depth and the canonical form of the query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/topk"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/resilience"
)

const keyPrefix = "ranked:"

// Store is the byte store behind the cache; *pkgredis.Client satisfies it.
// Get must return pkgredis.ErrCacheMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

type Option func(*QueryCache)

// WithBreaker routes store calls through b, so an unreachable store is
// skipped instead of being waited on for every query.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *QueryCache) { c.breaker = b }
}

// New creates a cache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics, opts ...Option) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Do(fn)
}

// Get returns cached results. Store and decoding failures count as misses.
func (c *QueryCache) Get(ctx context.Context, scope string, q query.Query, k int) ([]topk.Result, bool) {
	key := buildKey(scope, q, k)
	var (
		data   []byte
		absent bool
	)
	err := c.guard(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrCacheMiss) {
			absent = true
			return nil
		}
		return err
	})
	if err != nil || absent {
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache bypassed", "key", key, "error", err)
		case err != nil:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []topk.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", q.String(), "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, scope string, q query.Query, k int, results []topk.Result) {
	key := buildKey(scope, q, k)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.guard(func() error { return c.store.Set(ctx, key, data, c.ttl) })
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.logger.Debug("cache bypassed", "key", key, "error", err)
	case err != nil:
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or runs compute, sharing one
// computation between concurrent callers of the same key. Errors from
// compute are returned and never cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	scope string,
	q query.Query,
	k int,
	compute func() ([]topk.Result, error),
) ([]topk.Result, bool, error) {
	if results, ok := c.Get(ctx, scope, q, k); ok {
		return results, true, nil
	}
	key := buildKey(scope, q, k)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, scope, q, k, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]topk.Result), false, nil
}

// Invalidate drops every cached result, e.g. after the index was rebuilt.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the canonical query so that keys stay short. Term order
// is kept: it is part of the query's identity even though it does not
// change scores.
func buildKey(scope string, q query.Query, k int) string {
	raw := fmt.Sprintf("%s|k=%d|%s", scope, k, q.String())
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
