// Package events carries catalog change events from the write path to
// background consumers. Queues are pluggable (memory, Redis list, Kafka)
// and a rate-limited Drainer dispatches dequeued events to handlers.
package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

var (
	// ErrQueueClosed is returned when using a closed queue.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrQueueFull is returned when a bounded queue cannot accept more events.
	ErrQueueFull = errors.New("event queue is full")

	// ErrInvalidEvent is returned when an event is nil or incomplete.
	ErrInvalidEvent = errors.New("invalid catalog event")
)

const defaultBatchSize = 100

// validate checks the event and stamps a missing timestamp.
func validate(event *core.CatalogEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.Type != core.EventCreated && event.Type != core.EventDeleted {
		return errors.Wrapf(ErrInvalidEvent, "unknown event type %q", event.Type)
	}
	if event.RecordID == "" {
		return errors.Wrap(ErrInvalidEvent, "record id is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return nil
}

// QueueFactory is the Strategy interface for creating event queues.
type QueueFactory interface {
	Create(ctx context.Context, cfg config.EventsConfig, log zerolog.Logger) (core.EventQueue, error)

	// Type returns the queue identifier (e.g., "memory", "kafka").
	Type() string

	Validate(cfg config.EventsConfig) error
}

var (
	factoryRegistry = make(map[string]QueueFactory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a queue factory and its "queue/<type>" validator.
func RegisterFactory(factory QueueFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		registryMutex.Unlock()
		panic(fmt.Sprintf("queue factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	registryMutex.Unlock()

	config.RegisterValidator(config.ValidatorFunc{
		Name: config.Key(config.ScopeQueue, factory.Type()),
		Fn: func(c *config.Config) error {
			return factory.Validate(c.Events)
		},
	})
}

// Create builds the queue registered for cfg.QueueType.
func Create(ctx context.Context, cfg config.EventsConfig, log zerolog.Logger) (core.EventQueue, error) {
	if cfg.QueueType == "" {
		return nil, errors.New("queue type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.QueueType]
	registryMutex.RUnlock()

	if !exists {
		return nil, errors.Newf("unsupported queue type: %s", cfg.QueueType)
	}
	if err := factory.Validate(cfg); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration for %s queue", cfg.QueueType)
	}
	return factory.Create(ctx, cfg, log)
}

// GetRegisteredTypes returns the registered queue types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
