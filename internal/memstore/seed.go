package memstore

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// NewSeeded returns a store with a demo user and catalog for STORE_DRIVER=memory.
func NewSeeded() *Store {
	s := New()
	s.PutUser(orders.User{ID: "u-demo", Name: "Demo Buyer"})
	for _, p := range []orders.Product{
		{ID: "p-coffee", Name: "Coffee Beans 1kg", UnitPrice: decimal.RequireFromString("18.50"), Stock: 40},
		{ID: "p-filter", Name: "Paper Filters", UnitPrice: decimal.RequireFromString("4.25"), Stock: 200},
		{ID: "p-grinder", Name: "Hand Grinder", UnitPrice: decimal.RequireFromString("59.90"), Stock: 5},
	} {
		s.PutProduct(p)
	}
	return s
}
