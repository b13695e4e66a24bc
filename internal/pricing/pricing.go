// Package pricing turns accepted order lines into order totals.
//
// All arithmetic is decimal. Line subtotals are exact; the tax amount is rounded
// half-to-even (banker's rounding) to two decimal places and the total is the
// exact sum of the items price and the rounded tax, so
// TotalPrice == ItemsPrice + TaxPrice always holds.
package pricing

import "github.com/shopspring/decimal"

const Places = 2

var DefaultTaxRate = decimal.RequireFromString("0.12")

type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	ItemsPrice decimal.Decimal
	TaxPrice   decimal.Decimal
	TotalPrice decimal.Decimal
}

type Calculator struct {
	TaxRate decimal.Decimal
}

func NewCalculator(taxRate decimal.Decimal) Calculator {
	return Calculator{TaxRate: taxRate}
}

func (c Calculator) Compute(items []Item) Totals {
	itemsPrice := decimal.Zero
	for _, it := range items {
		itemsPrice = itemsPrice.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	itemsPrice = itemsPrice.RoundBank(Places)
	tax := itemsPrice.Mul(c.TaxRate).RoundBank(Places)
	return Totals{
		ItemsPrice: itemsPrice,
		TaxPrice:   tax,
		TotalPrice: itemsPrice.Add(tax),
	}
}
