package catalog

import (
	"context"
	"time"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
)

// Instrumented records operation counts and latencies for a catalog.
type Instrumented struct {
	core.Catalog
	metrics *metrics.Metrics
}

// NewInstrumented wraps c. A nil m records nothing.
func NewInstrumented(c core.Catalog, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Catalog: c, metrics: m}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(core.KindOf(err))
	}
	i.metrics.ObserveCatalog(op, outcome, time.Since(start))
}

func (i *Instrumented) Put(ctx context.Context, value string) (*core.StringRecord, error) {
	start := time.Now()
	rec, err := i.Catalog.Put(ctx, value)
	i.observe("put", start, err)
	return rec, err
}

func (i *Instrumented) GetByValue(ctx context.Context, value string) (*core.StringRecord, error) {
	start := time.Now()
	rec, err := i.Catalog.GetByValue(ctx, value)
	i.observe("get", start, err)
	return rec, err
}

func (i *Instrumented) Query(ctx context.Context, filter core.QueryFilter) ([]*core.StringRecord, error) {
	start := time.Now()
	recs, err := i.Catalog.Query(ctx, filter)
	i.observe("query", start, err)
	return recs, err
}

func (i *Instrumented) Delete(ctx context.Context, value string) error {
	start := time.Now()
	err := i.Catalog.Delete(ctx, value)
	i.observe("delete", start, err)
	return err
}
