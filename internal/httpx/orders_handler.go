package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

type OrdersHandler struct {
	Placer OrderPlacer
	Orders OrderReader
	Cache  redisx.Cache
	Log    *logger.Logger
	// Timeout bounds one PlaceOrder call, including its commit.
	Timeout time.Duration
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	order, err := h.Placer.PlaceOrder(ctx, req)
	if err != nil {
		code, body := statusFor(err)
		writeJSON(w, code, body)
		return
	}

	view := orders.NewView(order)
	if b, err := json.Marshal(view); err == nil {
		h.cacheSet(ctx, order.ID, b)
	}
	writeJSON(w, http.StatusCreated, placedBody{
		Success: true,
		Message: "Order created successfully.",
		Order:   view,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	key := fmt.Sprintf(redisx.KeyOrder, id)
	if h.Cache != nil {
		b, found, err := h.Cache.Get(ctx, key)
		if err != nil {
			h.Log.Warn("order cache read failed", "order_id", id, "error", err)
		}
		if found {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	// 2) storage
	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		if !errors.Is(err, orders.ErrOrderNotFound) {
			h.Log.Error("get order failed", "order_id", id, "error", err)
		}
		code, body := statusFor(err)
		writeJSON(w, code, body)
		return
	}
	b, err := json.Marshal(orders.NewView(o))
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	h.cacheSet(ctx, id, b)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// cacheSet is best effort; the store stays the source of truth.
func (h *OrdersHandler) cacheSet(ctx context.Context, id string, b []byte) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, fmt.Sprintf(redisx.KeyOrder, id), b, redisx.TTLOrderCache); err != nil {
		h.Log.Warn("order cache write failed", "order_id", id, "error", err)
	}
}
