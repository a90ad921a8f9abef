package events

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/kvstore"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
)

// RedisQueue keeps events in a single Redis list: RPUSH to enqueue, LPOP to
// dequeue. Events are JSON encoded.
type RedisQueue struct {
	lists core.ListStore
	key   string
	log   zerolog.Logger

	// owner is closed with the queue when the queue created the store
	owner  core.KVStore
	closed atomic.Bool
}

// NewRedisQueue builds a queue on an existing list store. The caller keeps
// ownership of lists.
func NewRedisQueue(lists core.ListStore, key string, log zerolog.Logger) *RedisQueue {
	if key == "" {
		key = "stringcatalog:events"
	}
	return &RedisQueue{
		lists: lists,
		key:   key,
		log:   logger.Component(log, "redis-queue"),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, event *core.CatalogEvent) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := validate(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal catalog event")
	}
	if err := q.lists.ListPush(ctx, q.key, data); err != nil {
		return errors.Wrapf(err, "failed to push event to %s", q.key)
	}
	return nil
}

// Dequeue pops up to batchSize events. Undecodable entries are dropped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.CatalogEvent, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.CatalogEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		data, err := q.lists.ListPop(ctx, q.key)
		if err != nil {
			if len(events) == 0 {
				return nil, errors.Wrapf(err, "failed to pop event from %s", q.key)
			}
			q.log.Warn().Err(err).Int("popped", len(events)).Msg("pop failed mid-batch")
			break
		}
		if data == nil {
			break
		}

		var event core.CatalogEvent
		if err := json.Unmarshal(data, &event); err != nil {
			q.log.Warn().Err(err).Msg("dropping undecodable event")
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Size returns LLEN of the list, or 0 when it cannot be read.
func (q *RedisQueue) Size() int {
	if q.closed.Load() {
		return 0
	}
	n, err := q.lists.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(n)
}

func (q *RedisQueue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	if q.owner != nil {
		return q.owner.Close()
	}
	return nil
}

type redisFactory struct{}

func (redisFactory) Type() string { return "redis" }

func (redisFactory) Validate(cfg config.EventsConfig) error {
	if cfg.QueueKey == "" {
		return errors.New("events.queue_key is required for the redis queue")
	}
	return kvstore.ValidateRedisConfig(cfg.Redis)
}

func (redisFactory) Create(ctx context.Context, cfg config.EventsConfig, log zerolog.Logger) (core.EventQueue, error) {
	store, err := kvstore.NewRedisKVStore(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	q := NewRedisQueue(store, cfg.QueueKey, log)
	q.owner = store
	return q, nil
}

func init() {
	RegisterFactory(redisFactory{})
}
