package orders

import "time"

// View is the client-facing shape of an order. POST /orders returns it, and
// GET /orders/{id} serves it from cache or storage.
type View struct {
	ID              string     `json:"_id"`
	User            string     `json:"user"`
	OrderItems      []ViewLine `json:"orderItems"`
	ItemsPrice      string     `json:"itemsPrice"`
	TaxPrice        string     `json:"taxPrice"`
	TotalPrice      string     `json:"totalPrice"`
	PaymentMethod   string     `json:"paymentMethod"`
	ReferenceNumber string     `json:"referenceNumber"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type ViewLine struct {
	Product  string `json:"product"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func NewView(o *Order) View {
	lines := make([]ViewLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, ViewLine{
			Product:  l.ProductRef,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    l.UnitPrice.StringFixed(2),
		})
	}
	return View{
		ID:              o.ID,
		User:            o.UserRef,
		OrderItems:      lines,
		ItemsPrice:      o.ItemsPrice.StringFixed(2),
		TaxPrice:        o.TaxPrice.StringFixed(2),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		PaymentMethod:   o.PaymentMethod,
		ReferenceNumber: o.ReferenceNumber,
		CreatedAt:       o.CreatedAt,
	}
}

// ViewFromPlaced rebuilds the view from an OrderPlaced event.
func ViewFromPlaced(p OrderPlacedPayload) View {
	lines := make([]ViewLine, 0, len(p.Items))
	for _, l := range p.Items {
		lines = append(lines, ViewLine{Product: l.ProductID, Name: l.Name, Quantity: l.Qty, Price: l.UnitPrice})
	}
	return View{
		ID:              p.OrderID,
		User:            p.UserID,
		OrderItems:      lines,
		ItemsPrice:      p.ItemsPrice,
		TaxPrice:        p.TaxPrice,
		TotalPrice:      p.TotalPrice,
		PaymentMethod:   p.PaymentMethod,
		ReferenceNumber: p.ReferenceNumber,
		CreatedAt:       p.CreatedAt,
	}
}
