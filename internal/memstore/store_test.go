package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

func TestScopeWritesInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "A", Name: "A", UnitPrice: decimal.NewFromInt(1), Stock: 5})

	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.DecrementStock(ctx, "A", 2))
	require.NoError(t, sc.InsertOrder(ctx, &orders.Order{ID: "o1"}))

	p, err := sc.LockProduct(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock, "scope sees its own decrement")

	committed, _ := s.Product("A")
	assert.Equal(t, 5, committed.Stock)
	assert.Empty(t, s.Orders())

	require.NoError(t, sc.Commit(ctx))
	committed, _ = s.Product("A")
	assert.Equal(t, 3, committed.Stock)
	assert.Len(t, s.Orders(), 1)
}

func TestRollbackDiscardsAndReleases(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "A", Stock: 5})

	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.DecrementStock(ctx, "A", 5))
	require.NoError(t, sc.Rollback(ctx))
	require.NoError(t, sc.Rollback(ctx))

	p, _ := s.Product("A")
	assert.Equal(t, 5, p.Stock)

	next, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, next.Rollback(ctx))
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "A", Stock: 1})

	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	defer sc.Rollback(ctx)

	assert.ErrorIs(t, sc.DecrementStock(ctx, "A", 2), orders.ErrInsufficientStock)
	assert.ErrorIs(t, sc.DecrementStock(ctx, "missing", 1), orders.ErrProductNotFound)
}

func TestBeginWaitsForOpenScope(t *testing.T) {
	s := New()
	first, err := s.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Commit(context.Background()))
	second, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, second.Rollback(context.Background()))
}

func TestCommitFaultAppliesNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "A", Stock: 4})
	boom := errors.New("disk full")
	s.FailOn(OpCommit, boom)

	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.DecrementStock(ctx, "A", 4))
	assert.ErrorIs(t, sc.Commit(ctx), boom)
	assert.ErrorIs(t, sc.Commit(ctx), ErrScopeClosed)

	p, _ := s.Product("A")
	assert.Equal(t, 4, p.Stock)

	s.FailOn(OpCommit, nil)
	sc, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.Commit(ctx))
}

func TestOutboxPendingAndMark(t *testing.T) {
	ctx := context.Background()
	s := New()
	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.EnqueueMessages(ctx,
		orders.OutboxMessage{ID: "1"}, orders.OutboxMessage{ID: "2"}, orders.OutboxMessage{ID: "3"}))
	require.NoError(t, sc.Commit(ctx))

	got, err := s.PendingMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)

	require.NoError(t, s.MarkPublished(ctx, []string{"1"}))
	got, _ = s.PendingMessages(ctx, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
}

func TestGetOrderReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	sc, _ := s.Begin(ctx)
	require.NoError(t, sc.InsertOrder(ctx, &orders.Order{ID: "o1", Lines: []orders.OrderLine{{ProductRef: "A", Quantity: 1}}}))
	require.NoError(t, sc.Commit(ctx))

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	o.Lines[0].Quantity = 99

	again, _ := s.GetOrder(ctx, "o1")
	assert.Equal(t, 1, again.Lines[0].Quantity)

	_, err = s.GetOrder(ctx, "nope")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestNewSeeded(t *testing.T) {
	s := NewSeeded()
	sc, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer sc.Rollback(context.Background())

	u, err := sc.FindUser(context.Background(), "u-demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo Buyer", u.Name)
	_, ok := s.Product("p-grinder")
	assert.True(t, ok)
}
