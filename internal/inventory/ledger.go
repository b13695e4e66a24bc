// Package inventory reserves stock for order lines inside a caller-owned scope.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type Reservation struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
}

type Ledger struct {
	log *logger.Logger
}

func NewLedger(log *logger.Logger) *Ledger {
	return &Ledger{log: log}
}

// LockAll locks every distinct product referenced by items, in sorted order.
func (l *Ledger) LockAll(ctx context.Context, s orders.StockScope, items []orders.LineItemRequest) error {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductRef]; ok {
			continue
		}
		seen[it.ProductRef] = struct{}{}
		ids = append(ids, it.ProductRef)
	}
	sort.Strings(ids)
	return s.LockProducts(ctx, ids)
}

// Reserve checks the current stock of productRef and decrements it by qty.
// Business rejections come back as *orders.LineError and leave stock untouched;
// any other error is a storage fault.
func (l *Ledger) Reserve(ctx context.Context, s orders.StockScope, productRef string, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, &orders.LineError{ProductRef: productRef, Requested: qty, Err: orders.ErrInvalidQuantity}
	}

	p, err := s.LockProduct(ctx, productRef)
	if errors.Is(err, orders.ErrProductNotFound) {
		return Reservation{}, &orders.LineError{ProductRef: productRef, Requested: qty, Err: orders.ErrProductNotFound}
	}
	if err != nil {
		return Reservation{}, err
	}

	reject := &orders.LineError{
		ProductRef:  productRef,
		ProductName: p.Name,
		Requested:   qty,
		Available:   p.Stock,
		Err:         orders.ErrInsufficientStock,
	}
	if p.Stock < qty {
		return Reservation{}, reject
	}
	if err := s.DecrementStock(ctx, productRef, qty); err != nil {
		if errors.Is(err, orders.ErrInsufficientStock) {
			return Reservation{}, reject
		}
		return Reservation{}, fmt.Errorf("reserve %s: %w", productRef, err)
	}

	l.log.Debug("stock reserved", "product_id", productRef, "qty", qty, "remaining", p.Stock-qty)
	return Reservation{
		ProductRef: productRef,
		Name:       p.Name,
		Quantity:   qty,
		UnitPrice:  p.UnitPrice,
	}, nil
}
