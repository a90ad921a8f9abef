package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
)

// fakeBroker is an in-process topic shared by a writer and a reader.
type fakeBroker struct {
	mu        sync.Mutex
	messages  []kafka.Message
	next      int
	committed []int64
	writeErr  error
	fetchErr  error
	closed    int
}

func (b *fakeBroker) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	for _, m := range msgs {
		m.Offset = int64(len(b.messages))
		b.messages = append(b.messages, m)
	}
	return nil
}

func (b *fakeBroker) FetchMessage(ctx context.Context) (kafka.Message, error) {
	b.mu.Lock()
	if b.fetchErr != nil {
		err := b.fetchErr
		b.mu.Unlock()
		return kafka.Message{}, err
	}
	if b.next < len(b.messages) {
		m := b.messages[b.next]
		b.next++
		b.mu.Unlock()
		return m, nil
	}
	b.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (b *fakeBroker) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range msgs {
		b.committed = append(b.committed, m.Offset)
	}
	return nil
}

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func newFakeKafkaQueue(b *fakeBroker) *KafkaQueue {
	cfg := config.DefaultConfig().Events.Kafka
	cfg.ReadTimeout = 20 * time.Millisecond
	cfg.MaxWait = 5 * time.Millisecond
	return newKafkaQueue(b, b, cfg, logger.Nop())
}

func TestKafkaQueueProduceConsume(t *testing.T) {
	ctx := context.Background()
	b := &fakeBroker{}
	q := newFakeKafkaQueue(b)

	require.NoError(t, q.Enqueue(ctx, newEvent(core.EventCreated, "a")))
	require.NoError(t, q.Enqueue(ctx, newEvent(core.EventDeleted, "b")))
	assert.Equal(t, 2, q.Size())

	require.Len(t, b.messages, 2)
	assert.Equal(t, []byte("id-a"), b.messages[0].Key)
	assert.Equal(t, kafka.Header{Key: "type", Value: []byte("created")}, b.messages[0].Headers[0])

	got, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Value)
	assert.Equal(t, core.EventDeleted, got[1].Type)
	assert.Equal(t, []int64{0, 1}, b.committed)
	assert.Equal(t, 0, q.Size())
}

func TestKafkaQueueEmptyDequeue(t *testing.T) {
	q := newFakeKafkaQueue(&fakeBroker{})

	got, err := q.Dequeue(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKafkaQueueSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	b := &fakeBroker{}
	q := newFakeKafkaQueue(b)

	require.NoError(t, b.WriteMessages(ctx, kafka.Message{Value: []byte("{")}))
	data, err := json.Marshal(newEvent(core.EventCreated, "z"))
	require.NoError(t, err)
	require.NoError(t, b.WriteMessages(ctx, kafka.Message{Value: data}))

	got, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "z", got[0].Value)
	// the undecodable message is committed too so it is not redelivered
	assert.Equal(t, []int64{0, 1}, b.committed)
}

func TestKafkaQueueErrors(t *testing.T) {
	ctx := context.Background()
	b := &fakeBroker{writeErr: errors.New("leader not available")}
	q := newFakeKafkaQueue(b)

	err := q.Enqueue(ctx, newEvent(core.EventCreated, "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stringcatalog-events")
	assert.Equal(t, 0, q.Size())

	b.fetchErr = errors.New("group coordinator unavailable")
	_, err = q.Dequeue(ctx, 1)
	assert.Error(t, err)
}

func TestKafkaQueueClose(t *testing.T) {
	b := &fakeBroker{}
	q := newFakeKafkaQueue(b)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.Equal(t, 2, b.closed) // writer and reader once each

	assert.ErrorIs(t, q.Enqueue(context.Background(), newEvent(core.EventCreated, "a")), ErrQueueClosed)
}

func TestValidateKafka(t *testing.T) {
	valid := config.DefaultConfig().Events.Kafka
	require.NoError(t, validateKafka(valid))

	noBrokers := valid
	noBrokers.Brokers = nil
	assert.Error(t, validateKafka(noBrokers))

	noTopic := valid
	noTopic.Topic = ""
	assert.Error(t, validateKafka(noTopic))

	badAcks := valid
	badAcks.RequiredAcks = 2
	assert.Error(t, validateKafka(badAcks))

	_, err := NewKafkaQueue(noTopic, logger.Nop())
	assert.Error(t, err)
}
