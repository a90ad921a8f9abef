package events

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// MemoryQueue is a bounded channel-backed queue. Events do not survive a
// restart.
type MemoryQueue struct {
	queue  chan *core.CatalogEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue holding at most bufferSize events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{
		queue: make(chan *core.CatalogEvent, bufferSize),
	}
}

// Enqueue adds an event without blocking. A full queue returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, event *core.CatalogEvent) error {
	if err := validate(event); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue takes up to batchSize events in FIFO order without waiting.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.CatalogEvent, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.CatalogEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case event, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close stops further enqueues. Buffered events can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}

type memoryFactory struct{}

func (memoryFactory) Type() string { return "memory" }

func (memoryFactory) Validate(cfg config.EventsConfig) error {
	if cfg.QueueBufferSize < 0 {
		return errors.New("events.queue_buffer_size must be non-negative")
	}
	return nil
}

func (memoryFactory) Create(_ context.Context, cfg config.EventsConfig, _ zerolog.Logger) (core.EventQueue, error) {
	return NewMemoryQueue(cfg.QueueBufferSize), nil
}

func init() {
	RegisterFactory(memoryFactory{})
}
