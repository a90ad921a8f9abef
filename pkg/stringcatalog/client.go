// Package stringcatalog is the public entry point to the string catalog:
// ingestion, exact lookup, and filtered retrieval through structured
// parameters or free text.
//
// Typical usage:
//
//	client, _ := stringcatalog.NewClient(ctx, cfg)
//	defer client.Close()
//
//	client.Start(ctx) // start the background event drainer
//	rec, _ := client.Create(ctx, "racecar")
//	res, _ := client.QueryNatural(ctx, "palindromic strings longer than 3")
package stringcatalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/catalog"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/events"
	"github.com/rzpsarthak13/string-catalog/internal/filter"
	"github.com/rzpsarthak13/string-catalog/internal/kvstore"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
)

// Client is the retrieval facade over a catalog.
type Client interface {
	// Create analyzes and stores value. A value already in the catalog fails
	// with a duplicate error and leaves the catalog unchanged.
	Create(ctx context.Context, value string) (*Record, error)

	// Get returns the record whose value is exactly value.
	Get(ctx context.Context, value string) (*Record, error)

	// Delete removes the record for value.
	Delete(ctx context.Context, value string) error

	// Query lists records matching structured parameters such as
	// min_length or is_palindrome. At least one recognized key is required.
	Query(ctx context.Context, params map[string]string) (*QueryResult, error)

	// QueryNatural translates text into a filter and lists matching records.
	// Blank text is rejected; text that matches no rule lists everything.
	QueryNatural(ctx context.Context, text string) (*NaturalQueryResult, error)

	// Health checks the catalog and reports drainer state.
	Health(ctx context.Context) Health

	// Start starts the background event drainer. It is non-blocking.
	Start(ctx context.Context) error

	// Stop stops the drainer, waiting for the in-flight event.
	Stop() error

	IsRunning() bool

	// Close stops the drainer and releases the queue and storage handles.
	Close() error
}

// Option customizes a client.
type Option func(*options)

type options struct {
	log        zerolog.Logger
	metrics    *metrics.Metrics
	catalog    core.Catalog
	kv         core.KVStore
	queue      core.EventQueue
	translator *filter.Translator
	handlers   []events.Handler
	now        func() time.Time
}

// WithLogger sets the root logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records operation metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCatalog uses c instead of building one from the configuration.
// The client takes ownership of c.
func WithCatalog(c core.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithCacheStore uses kv as the record cache when caching is enabled.
func WithCacheStore(kv core.KVStore) Option {
	return func(o *options) { o.kv = kv }
}

// WithEventQueue uses q instead of building one from the configuration.
func WithEventQueue(q core.EventQueue) Option {
	return func(o *options) { o.queue = q }
}

// WithTranslator replaces the natural-language rule table.
func WithTranslator(t *filter.Translator) Option {
	return func(o *options) { o.translator = t }
}

// WithEventHandler subscribes h to catalog events. Handlers run on the
// drainer goroutine in registration order.
func WithEventHandler(h events.Handler) Option {
	return func(o *options) { o.handlers = append(o.handlers, h) }
}

type client struct {
	mu      sync.RWMutex
	started bool

	catalog    core.Catalog
	cache      *catalog.Cached
	queue      core.EventQueue
	drainer    *events.Drainer
	translator *filter.Translator

	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewClient builds the catalog, optional cache and event pipeline described
// by cfg. Call Start to begin draining events and Close when done.
func NewClient(ctx context.Context, cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	o := options{
		log: logger.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.translator == nil {
		o.translator = filter.NewTranslator()
	}

	c := &client{
		translator: o.translator,
		log:        logger.Component(o.log, "client"),
		metrics:    o.metrics,
		now:        o.now,
	}

	base := o.catalog
	if base == nil {
		var err error
		base, err = catalog.Create(ctx, cfg.Catalog, o.log)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create catalog")
		}
	}

	if cfg.Cache.Enabled {
		kv := o.kv
		if kv == nil {
			var err error
			kv, err = kvstore.Create(ctx, cfg.Cache, o.log)
			if err != nil {
				base.Close()
				return nil, errors.Wrap(err, "failed to create cache store")
			}
		}
		c.cache = catalog.NewCached(base, kv, cfg.Cache.TTL, o.log, o.metrics)
		base = c.cache
	}
	c.catalog = catalog.NewInstrumented(base, o.metrics)

	if cfg.Events.Enabled {
		queue := o.queue
		if queue == nil {
			var err error
			queue, err = events.Create(ctx, cfg.Events, o.log)
			if err != nil {
				c.catalog.Close()
				return nil, errors.Wrap(err, "failed to create event queue")
			}
		}
		c.queue = queue

		handlers := o.handlers
		if c.cache != nil {
			handlers = append([]events.Handler{cacheSync{cache: c.cache}}, handlers...)
		}
		c.drainer = events.NewDrainer(queue, events.DrainerConfigFrom(cfg.Events), o.log, o.metrics, handlers...)
	}

	c.log.Info().
		Str("catalog", cfg.Catalog.Type).
		Bool("cache", cfg.Cache.Enabled).
		Bool("events", cfg.Events.Enabled).
		Msg("client initialized")
	return c, nil
}

func (c *client) Create(ctx context.Context, value string) (*Record, error) {
	rec, err := c.catalog.Put(ctx, value)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, core.EventCreated, rec.ID, value)
	return rec, nil
}

func (c *client) Get(ctx context.Context, value string) (*Record, error) {
	return c.catalog.GetByValue(ctx, value)
}

func (c *client) Delete(ctx context.Context, value string) error {
	if err := c.catalog.Delete(ctx, value); err != nil {
		return err
	}
	c.publish(ctx, core.EventDeleted, properties.Hash(value), value)
	return nil
}

func (c *client) Query(ctx context.Context, params map[string]string) (*QueryResult, error) {
	f, err := filter.BuildFilter(params)
	if err != nil {
		return nil, err
	}
	recs, err := c.catalog.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Data: recs, Count: len(recs), FiltersApplied: filter.Recognized(params)}, nil
}

func (c *client) QueryNatural(ctx context.Context, text string) (*NaturalQueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.Validation("Query parameter 'query' is required")
	}

	f := c.translator.Translate(text)
	recs, err := c.catalog.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	return &NaturalQueryResult{
		Data:  recs,
		Count: len(recs),
		InterpretedQuery: InterpretedQuery{
			Original:      text,
			ParsedFilters: f,
		},
	}, nil
}

func (c *client) Health(ctx context.Context) Health {
	h := Health{
		Status:    StatusOK,
		Timestamp: c.now().UTC(),
	}

	n, err := c.catalog.Count(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("health check failed")
		h.Status = StatusDegraded
	}
	h.Records = n

	if c.drainer != nil {
		h.Events = EventsHealth{
			Enabled:   true,
			Running:   c.drainer.IsRunning(),
			QueueSize: c.drainer.QueueSize(),
		}
	}
	return h
}

func (c *client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if c.drainer != nil {
		if err := c.drainer.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start drainer")
		}
	}
	c.started = true
	return nil
}

func (c *client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	if c.drainer != nil {
		if err := c.drainer.Stop(); err != nil {
			return errors.Wrap(err, "failed to stop drainer")
		}
	}
	c.started = false
	return nil
}

func (c *client) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

func (c *client) Close() error {
	if err := c.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("error stopping drainer")
	}

	var err error
	if c.queue != nil {
		err = errors.CombineErrors(err, c.queue.Close())
	}
	err = errors.CombineErrors(err, c.catalog.Close())
	c.log.Info().Msg("client closed")
	return err
}

// publish enqueues a change event. The catalog write has already committed,
// so failures are logged and swallowed.
func (c *client) publish(ctx context.Context, typ core.EventType, recordID, value string) {
	if c.queue == nil {
		return
	}

	event := &core.CatalogEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		RecordID:  recordID,
		Value:     value,
		Timestamp: c.now().UTC(),
	}
	if err := c.queue.Enqueue(ctx, event); err != nil {
		c.log.Warn().Err(err).Str("event_id", event.ID).Str("type", string(typ)).Msg("failed to publish event")
		return
	}
	c.metrics.EventPublished(string(typ))
}
