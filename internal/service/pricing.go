package service

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const moneyPlaces = 2

// PricingPolicy holds the tax and shipping rules.
type PricingPolicy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

// DefaultPricingPolicy is 18% tax with a flat 50 shipping fee waived from 500.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		TaxRate:               decimal.NewFromFloat(0.18),
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShippingFee:       decimal.NewFromInt(50),
	}
}

// PricedLine is a cart quantity paired with the snapshot it was checked
// against.
type PricedLine struct {
	Snapshot models.ProductSnapshot
	Quantity int
}

// LineTotal is unit price times quantity.
func (l PricedLine) LineTotal() decimal.Decimal {
	return l.Snapshot.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals are rounded to two places. Total is the sum of the rounded parts, so
// Total == Subtotal + Tax + Shipping holds exactly.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Compute prices the lines. No lines price to zero with no shipping fee.
func (p PricingPolicy) Compute(lines []PricedLine) Totals {
	if len(lines) == 0 {
		return Totals{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	subtotal = subtotal.Round(moneyPlaces)

	tax := subtotal.Mul(p.TaxRate).Round(moneyPlaces)

	shipping := p.FlatShippingFee.Round(moneyPlaces)
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
