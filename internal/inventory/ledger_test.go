package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type MockStockScope struct {
	mock.Mock
}

func (m *MockStockScope) LockProducts(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockStockScope) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(orders.Product), args.Error(1)
}

func (m *MockStockScope) DecrementStock(ctx context.Context, id string, qty int) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

var widget = orders.Product{ID: "w", Name: "Widget", UnitPrice: decimal.RequireFromString("2.50"), Stock: 3}

func TestReserveDecrementsWhenStockSuffices(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := new(MockStockScope)
	s.On("LockProduct", ctx, "w").Return(widget, nil)
	s.On("DecrementStock", ctx, "w", 3).Return(nil)

	// Act
	res, err := NewLedger(logger.NewNop()).Reserve(ctx, s, "w", 3)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Widget", res.Name)
	assert.Equal(t, 3, res.Quantity)
	assert.True(t, res.UnitPrice.Equal(widget.UnitPrice))
	s.AssertExpectations(t)
}

func TestReserveRejectsWithoutTouchingStock(t *testing.T) {
	ctx := context.Background()
	s := new(MockStockScope)
	s.On("LockProduct", ctx, "w").Return(widget, nil)

	_, err := NewLedger(logger.NewNop()).Reserve(ctx, s, "w", 4)

	var le *orders.LineError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Equal(t, 3, le.Available)
	assert.Equal(t, 4, le.Requested)
	assert.Equal(t, "Not enough stock for product Widget", le.Error())
	s.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveUnknownProduct(t *testing.T) {
	ctx := context.Background()
	s := new(MockStockScope)
	s.On("LockProduct", ctx, "nope").Return(orders.Product{}, orders.ErrProductNotFound)

	_, err := NewLedger(logger.NewNop()).Reserve(ctx, s, "nope", 1)

	var le *orders.LineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Product with ID nope not found.", le.Error())
}

func TestReserveInvalidQuantityNeverReadsStock(t *testing.T) {
	s := new(MockStockScope)

	_, err := NewLedger(logger.NewNop()).Reserve(context.Background(), s, "w", -2)

	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)
	s.AssertNotCalled(t, "LockProduct", mock.Anything, mock.Anything)
}

func TestReserveLostRaceOnDecrementIsARejection(t *testing.T) {
	ctx := context.Background()
	s := new(MockStockScope)
	s.On("LockProduct", ctx, "w").Return(widget, nil)
	s.On("DecrementStock", ctx, "w", 2).Return(orders.ErrInsufficientStock)

	_, err := NewLedger(logger.NewNop()).Reserve(ctx, s, "w", 2)

	var le *orders.LineError
	assert.ErrorAs(t, err, &le)
}

func TestReserveStorageFaultIsNotALineError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	s := new(MockStockScope)
	s.On("LockProduct", ctx, "w").Return(widget, nil)
	s.On("DecrementStock", ctx, "w", 1).Return(boom)

	_, err := NewLedger(logger.NewNop()).Reserve(ctx, s, "w", 1)

	var le *orders.LineError
	assert.False(t, errors.As(err, &le))
	assert.ErrorIs(t, err, boom)
}

func TestLockAllSortsAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := new(MockStockScope)
	s.On("LockProducts", ctx, []string{"a", "b", "c"}).Return(nil)

	err := NewLedger(logger.NewNop()).LockAll(ctx, s, []orders.LineItemRequest{
		{ProductRef: "c", Quantity: 1},
		{ProductRef: "a", Quantity: 1},
		{ProductRef: "c", Quantity: 2},
		{ProductRef: "b", Quantity: 1},
	})

	require.NoError(t, err)
	s.AssertExpectations(t)
}
