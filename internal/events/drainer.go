package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/metrics"
)

// Handler reacts to one catalog event.
type Handler interface {
	Handle(ctx context.Context, event *core.CatalogEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *core.CatalogEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *core.CatalogEvent) error {
	return f(ctx, event)
}

// Drain outcomes recorded in metrics.
const (
	OutcomeOK      = "ok"
	OutcomeRetried = "retried"
	OutcomeDropped = "dropped"
)

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the maximum number of events dispatched per second.
	DrainRate int

	// BatchSize is how many events to dequeue at once.
	BatchSize int

	// PollInterval is how long to wait after an empty or failed dequeue.
	PollInterval time.Duration

	// MaxRetries is how many times a failed event is re-enqueued before
	// it is dropped.
	MaxRetries int
}

// DefaultDrainerConfig returns the drainer defaults.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:    50,
		BatchSize:    100,
		PollInterval: 100 * time.Millisecond,
		MaxRetries:   3,
	}
}

// DrainerConfigFrom takes the drainer settings from the events section.
func DrainerConfigFrom(cfg config.EventsConfig) DrainerConfig {
	return DrainerConfig{
		DrainRate:    cfg.DrainRate,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
	}
}

// Drainer moves events from a queue to handlers at a bounded rate.
type Drainer struct {
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}

	queue    core.EventQueue
	handlers []Handler
	config   DrainerConfig
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewDrainer creates a drainer. Zero config fields fall back to defaults.
func NewDrainer(queue core.EventQueue, cfg DrainerConfig, log zerolog.Logger, m *metrics.Metrics, handlers ...Handler) *Drainer {
	def := DefaultDrainerConfig()
	if cfg.DrainRate <= 0 {
		cfg.DrainRate = def.DrainRate
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Drainer{
		queue:    queue,
		handlers: handlers,
		config:   cfg,
		log:      logger.Component(log, "drainer"),
		metrics:  m,
	}
}

// Start launches the drain loop. Calling Start on a running drainer is a no-op.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.doneCh = make(chan struct{})
	d.running = true

	go d.run(runCtx, d.doneCh)
	d.log.Info().Int("drain_rate", d.config.DrainRate).Int("batch_size", d.config.BatchSize).Msg("started")
	return nil
}

// Stop cancels the loop and waits for the in-flight event to finish.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel, done := d.cancel, d.doneCh
	d.mu.Unlock()

	cancel()
	<-done
	d.log.Info().Msg("stopped")
	return nil
}

func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// QueueSize returns the current size of the underlying queue.
func (d *Drainer) QueueSize() int {
	if d.queue == nil {
		return 0
	}
	return d.queue.Size()
}

func (d *Drainer) GetConfig() DrainerConfig {
	return d.config
}

func (d *Drainer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), 1)
	processed := 0
	start := time.Now()

	for {
		if ctx.Err() != nil {
			d.log.Debug().Int("processed", processed).Dur("uptime", time.Since(start)).Msg("drain loop exiting")
			return
		}

		events, err := d.queue.Dequeue(ctx, d.config.BatchSize)
		d.metrics.SetQueueDepth(d.queue.Size())
		if err != nil && ctx.Err() == nil {
			d.log.Warn().Err(err).Msg("dequeue failed")
		}
		if len(events) == 0 {
			sleep(ctx, d.config.PollInterval)
			continue
		}

		for _, event := range events {
			if event == nil {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				// Stopping with events in hand: put them back for the next run.
				d.requeue(event)
				continue
			}
			d.dispatch(ctx, event)
			processed++
		}
	}
}

// dispatch runs every handler. A failure re-enqueues the event with an
// incremented retry count until MaxRetries is exhausted.
func (d *Drainer) dispatch(ctx context.Context, event *core.CatalogEvent) {
	for _, h := range d.handlers {
		if err := h.Handle(ctx, event); err != nil {
			d.retry(ctx, event, err)
			return
		}
	}
	d.metrics.EventDrained(string(event.Type), OutcomeOK)
	d.log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("event handled")
}

func (d *Drainer) retry(ctx context.Context, event *core.CatalogEvent, cause error) {
	log := d.log.With().Str("event_id", event.ID).Str("type", string(event.Type)).Int("retry_count", event.RetryCount).Logger()

	if event.RetryCount >= d.config.MaxRetries {
		d.metrics.EventDrained(string(event.Type), OutcomeDropped)
		log.Error().Err(cause).Msg("dropping event after max retries")
		return
	}

	event.RetryCount++
	if err := d.queue.Enqueue(ctx, event); err != nil {
		d.metrics.EventDrained(string(event.Type), OutcomeDropped)
		log.Error().Err(err).AnErr("cause", cause).Msg("failed to re-enqueue event")
		return
	}
	d.metrics.EventDrained(string(event.Type), OutcomeRetried)
	log.Warn().Err(cause).Msg("handler failed, event re-enqueued")
}

func (d *Drainer) requeue(event *core.CatalogEvent) {
	if err := d.queue.Enqueue(context.Background(), event); err != nil {
		d.log.Warn().Err(err).Str("event_id", event.ID).Msg("event lost on shutdown")
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
