package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
)

const defaultGroupID = "stringcatalog-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes events to a topic and consumes them through a
// consumer group. Messages are keyed by record id so events for one string
// stay ordered within a partition.
type KafkaQueue struct {
	writer messageWriter
	reader messageReader
	topic  string

	// readTimeout bounds the wait for the first message of a batch,
	// maxWait the wait for each following one.
	readTimeout time.Duration
	maxWait     time.Duration

	log    zerolog.Logger
	closed atomic.Bool

	// Kafka has no cheap queue length; this tracks produced minus consumed
	// by this process only.
	size atomic.Int64
}

// NewKafkaQueue connects a writer and a group reader for cfg.Topic.
func NewKafkaQueue(cfg config.KafkaConfig, log zerolog.Logger) (*KafkaQueue, error) {
	if err := validateKafka(cfg); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultGroupID
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchBytes:   int64(cfg.MaxMessageBytes),
		MaxAttempts:  3,
	}

	// New groups start from the beginning of the topic so no event
	// published before the first consumer joined is lost.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	q := newKafkaQueue(writer, reader, cfg, log)
	q.log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Int("required_acks", cfg.RequiredAcks).
		Msg("kafka queue initialized")
	return q, nil
}

func newKafkaQueue(w messageWriter, r messageReader, cfg config.KafkaConfig, log zerolog.Logger) *KafkaQueue {
	q := &KafkaQueue{
		writer:      w,
		reader:      r,
		topic:       cfg.Topic,
		readTimeout: cfg.ReadTimeout,
		maxWait:     cfg.MaxWait,
		log:         logger.Component(log, "kafka-queue"),
	}
	if q.readTimeout <= 0 {
		q.readTimeout = 5 * time.Second
	}
	if q.maxWait <= 0 {
		q.maxWait = 100 * time.Millisecond
	}
	return q
}

func (q *KafkaQueue) Enqueue(ctx context.Context, event *core.CatalogEvent) error {
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

	msg := kafka.Message{
		Key:   []byte(event.RecordID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		q.log.Error().Err(err).Str("topic", q.topic).Dur("duration", time.Since(start)).Msg("produce failed")
		return errors.Wrapf(err, "failed to write event to topic %s", q.topic)
	}
	q.size.Add(1)

	q.log.Debug().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Dur("duration", time.Since(start)).
		Msg("event produced")
	return nil
}

// Dequeue fetches up to batchSize messages and commits their offsets once
// decoded. Delivery is therefore at-most-once; the drainer re-enqueues
// events whose handler failed.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.CatalogEvent, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		events = make([]*core.CatalogEvent, 0, batchSize)
		msgs   = make([]kafka.Message, 0, batchSize)
	)
	for i := 0; i < batchSize; i++ {
		wait := q.maxWait
		if i == 0 {
			wait = q.readTimeout
		}
		readCtx, cancel := context.WithTimeout(ctx, wait)
		msg, err := q.reader.FetchMessage(readCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			if len(msgs) == 0 {
				return nil, errors.Wrapf(err, "failed to fetch from topic %s", q.topic)
			}
			q.log.Warn().Err(err).Msg("fetch failed mid-batch")
			break
		}
		msgs = append(msgs, msg)

		var event core.CatalogEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			q.log.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("skipping undecodable message")
			continue
		}
		events = append(events, &event)
	}

	if len(msgs) > 0 {
		if err := q.reader.CommitMessages(ctx, msgs...); err != nil {
			q.log.Warn().Err(err).Int("messages", len(msgs)).Msg("offset commit failed")
		}
		if q.size.Add(-int64(len(msgs))) < 0 {
			q.size.Store(0)
		}
	}
	return events, nil
}

// Size is approximate; see KafkaQueue.
func (q *KafkaQueue) Size() int {
	return int(q.size.Load())
}

func (q *KafkaQueue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := errors.CombineErrors(q.writer.Close(), q.reader.Close())
	if err != nil {
		q.log.Error().Err(err).Msg("failed to close kafka clients")
	}
	return err
}

func validateKafka(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return errors.New("Kafka topic is required")
	}
	switch cfg.RequiredAcks {
	case -1, 0, 1:
	default:
		return errors.Newf("required_acks must be -1, 0 or 1, got: %d", cfg.RequiredAcks)
	}
	return nil
}

type kafkaFactory struct{}

func (kafkaFactory) Type() string { return "kafka" }

func (kafkaFactory) Validate(cfg config.EventsConfig) error {
	return validateKafka(cfg.Kafka)
}

func (kafkaFactory) Create(_ context.Context, cfg config.EventsConfig, log zerolog.Logger) (core.EventQueue, error) {
	return NewKafkaQueue(cfg.Kafka, log)
}

func init() {
	RegisterFactory(kafkaFactory{})
}
