package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/kvstore"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
)

// countingCatalog counts GetByValue calls that reach the wrapped catalog.
type countingCatalog struct {
	core.Catalog
	gets atomic.Int64
}

func (c *countingCatalog) GetByValue(ctx context.Context, value string) (*core.StringRecord, error) {
	c.gets.Add(1)
	return c.Catalog.GetByValue(ctx, value)
}

// brokenKV fails every operation.
type brokenKV struct{}

var errBroken = errors.New("connection refused")

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenKV) Set(context.Context, string, []byte, time.Duration) error { return errBroken }
func (brokenKV) Delete(context.Context, string) error { return errBroken }
func (brokenKV) Exists(context.Context, string) (bool, error) { return false, errBroken }
func (brokenKV) BatchSet(context.Context, map[string][]byte, time.Duration) error { return errBroken }
func (brokenKV) Close() error { return nil }

func newCachedFixture(t *testing.T, kv core.KVStore) (*Cached, *countingCatalog, *metrics.Metrics) {
	t.Helper()
	inner, err := NewSQLiteCatalog(context.Background(), MemoryPath, logger.Nop())
	require.NoError(t, err)

	counting := &countingCatalog{Catalog: inner}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCached(counting, kv, time.Hour, logger.Nop(), m)
	t.Cleanup(func() { _ = c.Close() })
	return c, counting, m
}

func TestCachedSatisfiesCatalogContract(t *testing.T) {
	runCatalogSuite(t, func(t *testing.T, now func() time.Time) core.Catalog {
		inner, err := NewSQLiteCatalog(context.Background(), MemoryPath, logger.Nop())
		require.NoError(t, err)
		inner.now = now
		c := NewCached(inner, kvstore.NewMemoryKVStore(), time.Hour, logger.Nop(), nil)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestCachedWriteThrough(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, inner, m := newCachedFixture(t, kv)

	rec, err := c.Put(ctx, "racecar")
	require.NoError(t, err)

	exists, err := kv.Exists(ctx, CacheKey(rec.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := c.GetByValue(ctx, "racecar")
	require.NoError(t, err)
	assert.Equal(t, rec.Properties, got.Properties)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	assert.EqualValues(t, 0, inner.gets.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, inner, m := newCachedFixture(t, kv)

	rec, err := c.Put(ctx, "noon")
	require.NoError(t, err)
	c.Evict(ctx, rec.ID)

	_, err = c.GetByValue(ctx, "noon")
	require.NoError(t, err)
	_, err = c.GetByValue(ctx, "noon")
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.gets.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestCachedMissingIsNotCached(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, inner, _ := newCachedFixture(t, kv)

	for i := 0; i < 2; i++ {
		_, err := c.GetByValue(ctx, "ghost")
		assert.Equal(t, core.KindNotFound, core.KindOf(err))
	}
	assert.EqualValues(t, 2, inner.gets.Load())

	exists, err := kv.Exists(ctx, CacheKey(properties.Hash("ghost")))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCachedDeleteEvicts(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, _, _ := newCachedFixture(t, kv)

	rec, err := c.Put(ctx, "level")
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "level"))

	exists, err := kv.Exists(ctx, CacheKey(rec.ID))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.GetByValue(ctx, "level")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestCachedDiscardsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, inner, _ := newCachedFixture(t, kv)

	rec, err := c.Put(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, CacheKey(rec.ID), []byte("{not json"), 0))

	got, err := c.GetByValue(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Value)
	assert.EqualValues(t, 1, inner.gets.Load())

	data, err := kv.Get(ctx, CacheKey(rec.ID))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":"abc"`)
}

func TestCachedToleratesBrokenStore(t *testing.T) {
	ctx := context.Background()
	c, inner, m := newCachedFixture(t, brokenKV{})

	_, err := c.Put(ctx, "hello")
	require.NoError(t, err)

	got, err := c.GetByValue(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Value)
	assert.EqualValues(t, 1, inner.gets.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))

	require.NoError(t, c.Delete(ctx, "hello"))
}

func TestCachedRefresh(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, _, _ := newCachedFixture(t, kv)

	rec, err := c.Put(ctx, "wow")
	require.NoError(t, err)
	c.Evict(ctx, rec.ID)

	require.NoError(t, c.Refresh(ctx, "wow"))
	exists, err := kv.Exists(ctx, CacheKey(rec.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	// deleting behind the cache's back leaves a stale entry until refreshed
	require.NoError(t, c.inner.Delete(ctx, "wow"))
	require.NoError(t, c.Refresh(ctx, "wow"))
	exists, err = kv.Exists(ctx, CacheKey(rec.ID))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCachedCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryKVStore()
	c, inner, _ := newCachedFixture(t, kv)

	_, err := c.Put(ctx, "stampede")
	require.NoError(t, err)
	c.Evict(ctx, properties.Hash("stampede"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := c.GetByValue(ctx, "stampede")
			assert.NoError(t, err)
			assert.Equal(t, "stampede", rec.Value)
		}()
	}
	wg.Wait()

	// every caller either hit the cache or joined a load; a handful of
	// loads can still race past a just-finished flight
	assert.LessOrEqual(t, inner.gets.Load(), int64(16))
	assert.GreaterOrEqual(t, inner.gets.Load(), int64(1))
}

// gatedCatalog pauses the next GetByValue after its read until released,
// then answers with the context error if the caller's context is done.
type gatedCatalog struct {
	core.Catalog
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newGatedCatalog(inner core.Catalog) *gatedCatalog {
	g := &gatedCatalog{Catalog: inner, read: make(chan struct{}), release: make(chan struct{})}
	g.armed.Store(true)
	return g
}

func (g *gatedCatalog) GetByValue(ctx context.Context, value string) (*core.StringRecord, error) {
	rec, err := g.Catalog.GetByValue(ctx, value)
	if g.armed.CompareAndSwap(true, false) {
		close(g.read)
		<-g.release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return rec, err
}

func newGatedFixture(t *testing.T, values ...string) (*Cached, *gatedCatalog, *kvstore.MemoryKVStore) {
	t.Helper()
	inner, err := NewSQLiteCatalog(context.Background(), MemoryPath, logger.Nop())
	require.NoError(t, err)
	for _, v := range values {
		_, err := inner.Put(context.Background(), v)
		require.NoError(t, err)
	}

	gated := newGatedCatalog(inner)
	kv := kvstore.NewMemoryKVStore()
	c := NewCached(gated, kv, time.Hour, logger.Nop(), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, gated, kv
}

func TestCachedMissRacingDeleteDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	c, gated, kv := newGatedFixture(t, "racecar")

	done := make(chan error, 1)
	go func() {
		_, err := c.GetByValue(ctx, "racecar")
		done <- err
	}()

	<-gated.read
	require.NoError(t, c.Delete(ctx, "racecar"))
	close(gated.release)
	// the read began before the delete, so it may still return the record
	require.NoError(t, <-done)

	exists, err := kv.Exists(ctx, CacheKey(properties.Hash("racecar")))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.GetByValue(ctx, "racecar")
	assert.True(t, core.IsKind(err, core.KindNotFound), "got %v", err)
}

func TestCachedFillWithoutDeleteStays(t *testing.T) {
	ctx := context.Background()
	c, gated, kv := newGatedFixture(t, "level")

	done := make(chan error, 1)
	go func() {
		_, err := c.GetByValue(ctx, "level")
		done <- err
	}()

	<-gated.read
	close(gated.release)
	require.NoError(t, <-done)

	exists, err := kv.Exists(ctx, CacheKey(properties.Hash("level")))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCachedLoadSurvivesCallerCancel(t *testing.T) {
	c, gated, kv := newGatedFixture(t, "noon")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetByValue(ctx, "noon")
		done <- err
	}()

	<-gated.read
	cancel()
	close(gated.release)
	require.NoError(t, <-done)

	exists, err := kv.Exists(context.Background(), CacheKey(properties.Hash("noon")))
	require.NoError(t, err)
	assert.True(t, exists)
}
