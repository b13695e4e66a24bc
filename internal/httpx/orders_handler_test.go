package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

type MockPlacer struct {
	mock.Mock
}

func (m *MockPlacer) PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

type MockReader struct {
	mock.Mock
}

func (m *MockReader) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func committedOrder() *orders.Order {
	return &orders.Order{
		ID:      "o-1",
		UserRef: "U",
		Lines: []orders.OrderLine{
			{ProductRef: "A", Name: "A", Quantity: 2, UnitPrice: decimal.RequireFromString("10")},
			{ProductRef: "B", Name: "B", Quantity: 1, UnitPrice: decimal.RequireFromString("5")},
		},
		ItemsPrice:      decimal.RequireFromString("25"),
		TaxPrice:        decimal.RequireFromString("3"),
		TotalPrice:      decimal.RequireFromString("28"),
		PaymentMethod:   "gcash",
		ReferenceNumber: "R-1",
		CreatedAt:       time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}
}

func newServer(placer OrderPlacer, reader OrderReader, cache redisx.Cache) http.Handler {
	r := NewRouter(logger.NewNop())
	(&OrdersHandler{Placer: placer, Orders: reader, Cache: cache, Log: logger.NewNop(), Timeout: time.Second}).Register(r)
	return r
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

const validBody = `{"user":"U","orderItems":[{"product":"A","quantity":2},{"product":"B","quantity":1}],"paymentMethod":"gcash","referenceNumber":"R-1"}`

func TestPostOrderCreated(t *testing.T) {
	placer := new(MockPlacer)
	want := orders.PlaceOrderRequest{
		UserRef: "U",
		Items: []orders.LineItemRequest{
			{ProductRef: "A", Quantity: 2},
			{ProductRef: "B", Quantity: 1},
		},
		PaymentMethod:   "gcash",
		ReferenceNumber: "R-1",
	}
	placer.On("PlaceOrder", mock.Anything, want).Return(committedOrder(), nil)
	cache := redisx.NewMemory()

	rec, out := post(t, newServer(placer, nil, cache), validBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Order created successfully.", out["message"])
	order := out["order"].(map[string]any)
	assert.Equal(t, "25.00", order["itemsPrice"])
	assert.Equal(t, "3.00", order["taxPrice"])
	assert.Equal(t, "28.00", order["totalPrice"])

	_, found, _ := cache.Get(context.Background(), "order:o-1")
	assert.True(t, found)
	placer.AssertExpectations(t)
}

func TestPostOrderErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    int
		message string
		details []any
	}{
		{
			name:    "unknown user",
			err:     orders.ErrUserNotFound,
			code:    http.StatusBadRequest,
			message: "User not found.",
		},
		{
			name: "validation",
			err: &orders.ValidationError{Lines: []*orders.LineError{
				{ProductRef: "B", ProductName: "B", Err: orders.ErrInsufficientStock},
				{ProductRef: "Z", Err: orders.ErrProductNotFound},
			}},
			code:    http.StatusBadRequest,
			message: "Not enough stock for product B\nProduct with ID Z not found.",
			details: []any{"Not enough stock for product B", "Product with ID Z not found."},
		},
		{
			name:    "aborted",
			err:     &orders.AbortedError{Stage: "commit", Err: errors.New("pq: could not serialize access")},
			code:    http.StatusInternalServerError,
			message: "Internal Server Error.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			placer := new(MockPlacer)
			placer.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec, out := post(t, newServer(placer, nil, nil), validBody)

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tc.message, out["error"])
			if tc.details != nil {
				assert.Equal(t, tc.details, out["details"])
			} else {
				assert.NotContains(t, out, "details")
			}
		})
	}
}

func TestPostOrderRejectsMalformedJSON(t *testing.T) {
	placer := new(MockPlacer)

	rec, out := post(t, newServer(placer, nil, nil), `{"user":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body.", out["error"])
	placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestGetOrderFallsBackToStoreAndFillsCache(t *testing.T) {
	reader := new(MockReader)
	reader.On("GetOrder", mock.Anything, "o-1").Return(committedOrder(), nil).Once()
	cache := redisx.NewMemory()
	h := newServer(nil, reader, cache)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var v orders.View
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		assert.Equal(t, "o-1", v.ID)
		assert.Equal(t, "28.00", v.TotalPrice)
	}
	reader.AssertNumberOfCalls(t, "GetOrder", 1)
}

func TestGetOrderNotFound(t *testing.T) {
	reader := new(MockReader)
	reader.On("GetOrder", mock.Anything, "nope").Return(nil, orders.ErrOrderNotFound)

	rec := httptest.NewRecorder()
	newServer(nil, reader, redisx.NewMemory()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(logger.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
