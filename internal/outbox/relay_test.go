package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/memstore"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func enqueue(t *testing.T, s *memstore.Store, msgs ...orders.OutboxMessage) {
	t.Helper()
	ctx := context.Background()
	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.EnqueueMessages(ctx, msgs...))
	require.NoError(t, sc.Commit(ctx))
}

func msg(id, topic string) orders.OutboxMessage {
	return orders.OutboxMessage{
		ID:        id,
		Topic:     topic,
		Key:       []byte("o-1"),
		Payload:   []byte(`{"event_id":"` + id + `"}`),
		Headers:   map[string]string{"x-event-type": "OrderPlaced"},
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunOncePublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	enqueue(t, s, msg("e1", orders.TopicOrderPlaced), msg("e2", orders.TopicIncomeRecorded))

	pub := new(MockPublisher)
	var sent []kafka.Message
	pub.On("Publish", ctx, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).([]kafka.Message)
	}).Return(nil).Once()

	n, err := NewRelay(s, pub, 10, time.Second, logger.NewNop()).RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sent, 2)
	assert.Equal(t, orders.TopicOrderPlaced, sent[0].Topic)
	assert.Equal(t, []byte("o-1"), sent[0].Key)
	assert.Equal(t, "x-event-type", sent[0].Headers[0].Key)

	left, err := s.PendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
	pub.AssertExpectations(t)
}

func TestRunOnceKeepsRowsWhenBrokerFails(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	enqueue(t, s, msg("e1", orders.TopicOrderPlaced))

	pub := new(MockPublisher)
	pub.On("Publish", ctx, mock.Anything).Return(errors.New("broker down"))

	n, err := NewRelay(s, pub, 10, time.Second, logger.NewNop()).RunOnce(ctx)

	assert.Error(t, err)
	assert.Zero(t, n)
	left, _ := s.PendingMessages(ctx, 10)
	assert.Len(t, left, 1)
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	enqueue(t, s, msg("e1", "t"), msg("e2", "t"), msg("e3", "t"))

	pub := new(MockPublisher)
	pub.On("Publish", ctx, mock.Anything).Return(nil)
	r := NewRelay(s, pub, 2, time.Second, logger.NewNop())

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	s := memstore.New()
	enqueue(t, s, msg("e1", "t"), msg("e2", "t"), msg("e3", "t"))

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRelay(s, pub, 2, time.Hour, logger.NewNop()).Run(ctx) }()

	assert.Eventually(t, func() bool {
		left, _ := s.PendingMessages(context.Background(), 10)
		return len(left) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
