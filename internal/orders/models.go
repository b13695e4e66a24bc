package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID   string
	Name string
}

// Product is the slice of the catalog this service reads and mutates.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Stock     int
}

type LineItemRequest struct {
	ProductRef string `json:"product"`
	Quantity   int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	UserRef         string            `json:"user"`
	Items           []LineItemRequest `json:"orderItems"`
	PaymentMethod   string            `json:"paymentMethod"`
	ReferenceNumber string            `json:"referenceNumber"`
}

// OrderLine snapshots the product name and price at commit time.
type OrderLine struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
}

type Order struct {
	ID              string
	UserRef         string
	Lines           []OrderLine
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	TotalPrice      decimal.Decimal
	PaymentMethod   string
	ReferenceNumber string
	CreatedAt       time.Time
}

// IncomeLine deliberately carries no name or quantity.
type IncomeLine struct {
	ProductRef string
	Price      decimal.Decimal
}

type IncomeEntry struct {
	ID         string
	OrderID    string
	Lines      []IncomeLine
	ItemsPrice decimal.Decimal
	TaxPrice   decimal.Decimal
	TotalPrice decimal.Decimal
	Date       time.Time
}

// NewIncomeEntry mirrors the monetary side of a committed order.
func NewIncomeEntry(id string, o *Order) *IncomeEntry {
	lines := make([]IncomeLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, IncomeLine{ProductRef: l.ProductRef, Price: l.UnitPrice})
	}
	return &IncomeEntry{
		ID:         id,
		OrderID:    o.ID,
		Lines:      lines,
		ItemsPrice: o.ItemsPrice,
		TaxPrice:   o.TaxPrice,
		TotalPrice: o.TotalPrice,
		Date:       o.CreatedAt,
	}
}

// OutboxMessage is a broker message persisted in the same scope as the order.
type OutboxMessage struct {
	ID        string
	Topic     string
	Key       []byte
	Payload   []byte
	Headers   map[string]string
	CreatedAt time.Time
}
