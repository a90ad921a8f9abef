package events

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
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
)

func fastConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:    1000,
		BatchSize:    10,
		PollInterval: 5 * time.Millisecond,
		MaxRetries:   2,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []*core.CatalogEvent
}

func (r *recorder) Handle(_ context.Context, e *core.CatalogEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Value
	}
	return out
}

func TestDrainerDispatchesInOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(16)
	rec := &recorder{}
	m := metrics.New(prometheus.NewRegistry())

	d := NewDrainer(q, fastConfig(), logger.Nop(), m, rec)
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, newEvent(core.EventCreated, v)))
	}

	require.Eventually(t, func() bool { return len(rec.values()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, rec.values())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsDrainedTotal.WithLabelValues("created", OutcomeOK)))
}

func TestDrainerRetriesFailedEvents(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(16)
	m := metrics.New(prometheus.NewRegistry())

	var calls atomic.Int32
	flaky := HandlerFunc(func(context.Context, *core.CatalogEvent) error {
		if calls.Add(1) <= 2 {
			return errors.New("cache unavailable")
		}
		return nil
	})

	d := NewDrainer(q, fastConfig(), logger.Nop(), m, flaky)
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	require.NoError(t, q.Enqueue(ctx, newEvent(core.EventDeleted, "x")))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventsDrainedTotal.WithLabelValues("deleted", OutcomeOK)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsDrainedTotal.WithLabelValues("deleted", OutcomeRetried)))
	assert.EqualValues(t, 3, calls.Load())
}

func TestDrainerDropsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(16)
	m := metrics.New(prometheus.NewRegistry())

	var calls atomic.Int32
	broken := HandlerFunc(func(context.Context, *core.CatalogEvent) error {
		calls.Add(1)
		return errors.New("always fails")
	})

	d := NewDrainer(q, fastConfig(), logger.Nop(), m, broken)
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	require.NoError(t, q.Enqueue(ctx, newEvent(core.EventCreated, "x")))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventsDrainedTotal.WithLabelValues("created", OutcomeDropped)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsDrainedTotal.WithLabelValues("created", OutcomeRetried)))
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 0, q.Size())
}

func TestDrainerStopsHandlerChainOnFailure(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(16)
	cfg := fastConfig()
	cfg.MaxRetries = 0

	var second atomic.Int32
	first := HandlerFunc(func(context.Context, *core.CatalogEvent) error { return errors.New("nope") })
	after := HandlerFunc(func(context.Context, *core.CatalogEvent) error {
		second.Add(1)
		return nil
	})

	d := NewDrainer(q, cfg, logger.Nop(), nil, first, after)
	require.NoError(t, d.Start(ctx))

	require.NoError(t, q.Enqueue(ctx, newEvent(core.EventCreated, "x")))
	require.Eventually(t, func() bool { return q.Size() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop())

	assert.EqualValues(t, 0, second.Load())
}

func TestDrainerLifecycle(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	d := NewDrainer(q, DrainerConfig{}, logger.Nop(), nil)

	def := DefaultDrainerConfig()
	assert.Equal(t, def.DrainRate, d.GetConfig().DrainRate)
	assert.Equal(t, def.BatchSize, d.GetConfig().BatchSize)
	assert.Equal(t, def.PollInterval, d.GetConfig().PollInterval)
	assert.False(t, d.IsRunning())
	require.NoError(t, d.Stop())

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx))
	assert.True(t, d.IsRunning())

	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())

	// restartable
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Stop())
}

func TestDrainerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewMemoryQueue(4)
	d := NewDrainer(q, fastConfig(), logger.Nop(), nil)

	require.NoError(t, d.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		_ = d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drainer did not stop after context cancellation")
	}
}

func TestDrainerQueueSizeAndDepthMetric(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	m := metrics.New(prometheus.NewRegistry())
	d := NewDrainer(q, fastConfig(), logger.Nop(), m)

	require.NoError(t, q.Enqueue(ctx, newEvent(core.EventCreated, "a")))
	assert.Equal(t, 1, d.QueueSize())

	require.NoError(t, d.Start(ctx))
	defer d.Stop()
	require.Eventually(t, func() bool { return d.QueueSize() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventQueueDepth) == 0
	}, 2*time.Second, 5*time.Millisecond)
}
