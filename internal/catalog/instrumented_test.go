package catalog

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
)

func TestInstrumentedRecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	inner, err := NewSQLiteCatalog(ctx, MemoryPath, logger.Nop())
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	c := NewInstrumented(inner, m)
	defer c.Close()

	_, err = c.Put(ctx, "abc")
	require.NoError(t, err)
	_, err = c.Put(ctx, "abc")
	require.Error(t, err)
	_, err = c.GetByValue(ctx, "missing")
	require.Error(t, err)
	_, err = c.Query(ctx, core.QueryFilter{})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "abc"))

	ops := m.CatalogOperationsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("put", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("query", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("delete", "ok")))
}

func TestInstrumentedNilMetrics(t *testing.T) {
	ctx := context.Background()
	inner, err := NewSQLiteCatalog(ctx, MemoryPath, logger.Nop())
	require.NoError(t, err)

	c := NewInstrumented(inner, nil)
	defer c.Close()

	_, err = c.Put(ctx, "x")
	require.NoError(t, err)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
