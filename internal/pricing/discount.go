package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind is the type of a discount
type DiscountKind string

// Discount kinds
const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// ErrInvalidDiscount is returned for an out-of-range discount
var ErrInvalidDiscount = errors.New("invalid discount")

var hundred = decimal.NewFromInt(100)

// Discount is the single active discount of a cart
type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// NewDiscount validates and builds a discount.
// Percentage must be in (0,100], Fixed must be > 0.
func NewDiscount(kind DiscountKind, value decimal.Decimal) (*Discount, error) {
	switch kind {
	case DiscountPercentage:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: percentage must be within (0, 100], got %s", ErrInvalidDiscount, value)
		}
	case DiscountFixed:
		if !value.IsPositive() {
			return nil, fmt.Errorf("%w: fixed amount must be positive, got %s", ErrInvalidDiscount, value)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDiscount, kind)
	}
	return &Discount{Kind: kind, Value: value}, nil
}

// ComputeTotal applies d to subtotal, never going below zero
func ComputeTotal(subtotal decimal.Decimal, d *Discount) decimal.Decimal {
	if d == nil {
		return subtotal
	}

	var total decimal.Decimal
	switch d.Kind {
	case DiscountPercentage:
		total = subtotal.Mul(decimal.NewFromInt(1).Sub(d.Value.Div(hundred)))
	case DiscountFixed:
		total = subtotal.Sub(d.Value)
	default:
		return subtotal
	}

	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

// SettlementFields returns the ledger's discount_percentage / discount_amount pair
func SettlementFields(d *Discount) (percentage, amount *decimal.Decimal) {
	if d == nil {
		return nil, nil
	}
	v := d.Value
	if d.Kind == DiscountPercentage {
		return &v, nil
	}
	return nil, &v
}
