package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventIncomeRecorded = "IncomeRecorded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----
// Amounts travel as fixed two-place strings so consumers never parse floats.

type LinePayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID         string        `json:"order_id"`
	UserID          string        `json:"user_id"`
	Items           []LinePayload `json:"items"`
	ItemsPrice      string        `json:"items_price"`
	TaxPrice        string        `json:"tax_price"`
	TotalPrice      string        `json:"total_price"`
	PaymentMethod   string        `json:"payment_method"`
	ReferenceNumber string        `json:"reference_number"`
	CreatedAt       time.Time     `json:"created_at"`
}

type IncomeLinePayload struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

type IncomeRecordedPayload struct {
	IncomeID   string              `json:"income_id"`
	OrderID    string              `json:"order_id"`
	Items      []IncomeLinePayload `json:"items"`
	ItemsPrice string              `json:"items_price"`
	TaxPrice   string              `json:"tax_price"`
	TotalPrice string              `json:"total_price"`
	Date       time.Time           `json:"date"`
}

func NewOrderPlacedPayload(o *Order) OrderPlacedPayload {
	items := make([]LinePayload, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, LinePayload{
			ProductID: l.ProductRef,
			Name:      l.Name,
			Qty:       l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		})
	}
	return OrderPlacedPayload{
		OrderID:         o.ID,
		UserID:          o.UserRef,
		Items:           items,
		ItemsPrice:      o.ItemsPrice.StringFixed(2),
		TaxPrice:        o.TaxPrice.StringFixed(2),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		PaymentMethod:   o.PaymentMethod,
		ReferenceNumber: o.ReferenceNumber,
		CreatedAt:       o.CreatedAt,
	}
}

func NewIncomeRecordedPayload(e *IncomeEntry) IncomeRecordedPayload {
	items := make([]IncomeLinePayload, 0, len(e.Lines))
	for _, l := range e.Lines {
		items = append(items, IncomeLinePayload{ProductID: l.ProductRef, Price: l.Price.StringFixed(2)})
	}
	return IncomeRecordedPayload{
		IncomeID:   e.ID,
		OrderID:    e.OrderID,
		Items:      items,
		ItemsPrice: e.ItemsPrice.StringFixed(2),
		TaxPrice:   e.TaxPrice.StringFixed(2),
		TotalPrice: e.TotalPrice.StringFixed(2),
		Date:       e.Date,
	}
}

// NewOutboxMessage wraps payload in a v1 envelope addressed to topic.
func NewOutboxMessage(id, topic, eventType, producer, orderID, traceID string, at time.Time, payload any) (OutboxMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, err
	}
	env := Envelope{
		EventID:       id,
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       raw,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:      id,
		Topic:   topic,
		Key:     PartitionKey(orderID),
		Payload: b,
		Headers: map[string]string{
			"x-event-type":    eventType,
			"x-event-version": "1",
		},
		CreatedAt: at,
	}, nil
}
