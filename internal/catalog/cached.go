package catalog

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
)

// CacheKeyPrefix namespaces record entries in the KV store.
const CacheKeyPrefix = "strings:"

// CacheKey returns the KV key for a record id.
func CacheKey(id string) string {
	return CacheKeyPrefix + id
}

// Cached is a read-through, write-through cache in front of a catalog.
// The wrapped catalog stays authoritative: cache failures are logged and
// the request proceeds against the inner catalog.
type Cached struct {
	inner   core.Catalog
	kv      core.KVStore
	ttl     time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics

	// collapses concurrent misses for the same key
	loads singleflight.Group

	// bumped by every committed delete; fills that overlap one are undone
	deletes atomic.Uint64
}

// NewCached wraps inner with kv. A zero ttl caches without expiry.
func NewCached(inner core.Catalog, kv core.KVStore, ttl time.Duration, log zerolog.Logger, m *metrics.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		kv:      kv,
		ttl:     ttl,
		log:     logger.Component(log, "cache"),
		metrics: m,
	}
}

// Put inserts through the inner catalog, then caches the new record.
func (c *Cached) Put(ctx context.Context, value string) (*core.StringRecord, error) {
	gen := c.deletes.Load()
	rec, err := c.inner.Put(ctx, value)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, gen, rec)
	return rec, nil
}

// GetByValue serves from the cache, falling back to the inner catalog.
func (c *Cached) GetByValue(ctx context.Context, value string) (*core.StringRecord, error) {
	key := CacheKey(properties.Hash(value))

	if rec, ok := c.lookup(ctx, key); ok {
		c.metrics.CacheHit()
		return rec, nil
	}
	c.metrics.CacheMiss()

	v, err, _ := c.loads.Do(key, func() (interface{}, error) {
		// shared by every waiter; detached from the leader's cancellation
		lctx := context.WithoutCancel(ctx)
		gen := c.deletes.Load()
		rec, err := c.inner.GetByValue(lctx, value)
		if err != nil {
			return nil, err
		}
		c.fill(lctx, gen, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.StringRecord), nil
}

// Query always goes to the inner catalog.
func (c *Cached) Query(ctx context.Context, filter core.QueryFilter) ([]*core.StringRecord, error) {
	return c.inner.Query(ctx, filter)
}

// Delete removes from the inner catalog, then evicts.
func (c *Cached) Delete(ctx context.Context, value string) error {
	if err := c.inner.Delete(ctx, value); err != nil {
		return err
	}
	c.deletes.Add(1)
	c.Evict(ctx, properties.Hash(value))
	return nil
}

func (c *Cached) Count(ctx context.Context) (int64, error) {
	return c.inner.Count(ctx)
}

// Close closes the inner catalog and the KV store.
func (c *Cached) Close() error {
	return errors.CombineErrors(c.inner.Close(), c.kv.Close())
}

// Warm stores rec in the cache.
func (c *Cached) Warm(ctx context.Context, rec *core.StringRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.log.Warn().Err(err).Str("id", rec.ID).Msg("failed to encode record for cache")
		return
	}
	if err := c.kv.Set(ctx, CacheKey(rec.ID), data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("id", rec.ID).Msg("cache write failed")
	}
}

// fill caches rec, read from the inner catalog while the delete generation
// was gen. If a delete committed since, the entry is dropped again: the
// read may predate the delete, and its eviction may predate this write.
func (c *Cached) fill(ctx context.Context, gen uint64, rec *core.StringRecord) {
	c.Warm(ctx, rec)
	if c.deletes.Load() != gen {
		c.Evict(ctx, rec.ID)
	}
}

// Evict drops the cached entry for id.
func (c *Cached) Evict(ctx context.Context, id string) {
	if err := c.kv.Delete(ctx, CacheKey(id)); err != nil {
		c.log.Warn().Err(err).Str("id", id).Msg("cache eviction failed")
	}
}

// Refresh reloads the record for value from the inner catalog into the
// cache, evicting it when the record no longer exists.
func (c *Cached) Refresh(ctx context.Context, value string) error {
	gen := c.deletes.Load()
	rec, err := c.inner.GetByValue(ctx, value)
	if core.IsKind(err, core.KindNotFound) {
		c.Evict(ctx, properties.Hash(value))
		return nil
	}
	if err != nil {
		return err
	}
	c.fill(ctx, gen, rec)
	return nil
}

func (c *Cached) lookup(ctx context.Context, key string) (*core.StringRecord, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrKeyNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}

	var rec core.StringRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("discarding corrupt cache entry")
		_ = c.kv.Delete(ctx, key)
		return nil, false
	}
	return &rec, true
}
