// Package metrics provides Prometheus metrics for the string catalog.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Catalog
	CatalogOperationsTotal   *prometheus.CounterVec
	CatalogOperationDuration *prometheus.HistogramVec

	// Cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Events
	EventsPublishedTotal *prometheus.CounterVec
	EventsDrainedTotal   *prometheus.CounterVec
	EventQueueDepth      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringcatalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stringcatalog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.CatalogOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringcatalog_catalog_operations_total",
			Help: "Total number of catalog operations",
		},
		[]string{"operation", "outcome"},
	)

	m.CatalogOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stringcatalog_catalog_operation_duration_seconds",
			Help:    "Duration of catalog operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	m.CacheHitsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "stringcatalog_cache_hits_total",
		Help: "Record lookups served from the cache",
	})
	m.CacheMissesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "stringcatalog_cache_misses_total",
		Help: "Record lookups that fell through to the catalog",
	})

	m.EventsPublishedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringcatalog_events_published_total",
			Help: "Catalog events enqueued",
		},
		[]string{"type"},
	)
	m.EventsDrainedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringcatalog_events_drained_total",
			Help: "Catalog events dispatched by the drainer",
		},
		[]string{"type", "outcome"},
	)
	m.EventQueueDepth = f.NewGauge(prometheus.GaugeOpts{
		Name: "stringcatalog_event_queue_depth",
		Help: "Approximate number of queued catalog events",
	})

	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveCatalog records one catalog operation.
func (m *Metrics) ObserveCatalog(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CatalogOperationsTotal.WithLabelValues(op, outcome).Inc()
	m.CatalogOperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) EventPublished(eventType string) {
	if m != nil {
		m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) EventDrained(eventType, outcome string) {
	if m != nil {
		m.EventsDrainedTotal.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.EventQueueDepth.Set(float64(n))
	}
}
