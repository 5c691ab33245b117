// Package units converts between stored base-unit stock and the sellable
// display units shown at the till.
package units

import (
	"strconv"
	"strings"

	"pos-checkout/internal/models"
)

// Canonical unit tokens
const (
	Piece      = "piece"
	Gram       = "g"
	Kilogram   = "kg"
	Milliliter = "ml"
	Liter      = "l"
)

// Scale tells ToBase whether a quantity is already base-unit scale
type Scale int

const (
	ScaleDisplay Scale = iota
	ScaleBase
)

// Quantity is a unit-explicit amount entered by staff
type Quantity struct {
	Value float64 `json:"value"`
	Scale Scale   `json:"scale"`
}

// Display is a stock amount rendered for staff and customers.
// Ratio is the un-fallen-back display quantity and is what valuation
// and classification use.
type Display struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Ratio    float64 `json:"ratio"`
	Fallback bool    `json:"fallback"`
}

// large base units whose stock is physically recorded in the small unit
var recordedIn = map[string]string{
	Kilogram: Gram,
	Liter:    Milliliter,
}

// ToDisplay maps a stored base-unit stock amount to a display quantity and label.
// It never fails: a non-positive quantityPerUnit is treated as 1.
func ToDisplay(stock float64, productType models.ProductType, quantityPerUnit float64, baseUnit string) Display {
	if productType != models.ProductTypeWeight && productType != models.ProductTypeVolume {
		return Display{Quantity: stock, Unit: Piece, Ratio: stock}
	}
	if quantityPerUnit <= 0 {
		quantityPerUnit = 1
	}

	unit := canonical(baseUnit)
	amount := stock
	recorded := unit
	if small, ok := recordedIn[unit]; ok {
		amount = stock / 1000
		recorded = small
	}

	ratio := amount / quantityPerUnit
	if ratio < 1 {
		return Display{Quantity: stock, Unit: recorded, Ratio: ratio, Fallback: true}
	}
	return Display{Quantity: ratio, Unit: Label(quantityPerUnit, unit), Ratio: ratio}
}

// DisplayRatio is ToDisplay(...).Ratio
func DisplayRatio(stock float64, productType models.ProductType, quantityPerUnit float64, baseUnit string) float64 {
	return ToDisplay(stock, productType, quantityPerUnit, baseUnit).Ratio
}

// ToBase converts a quantity to the scale stock is recorded in. The caller
// states the scale explicitly; nothing is inferred from magnitude.
func ToBase(q Quantity, productType models.ProductType, quantityPerUnit float64, baseUnit string) float64 {
	if q.Scale == ScaleBase {
		return q.Value
	}
	if productType != models.ProductTypeWeight && productType != models.ProductTypeVolume {
		return q.Value
	}
	if quantityPerUnit <= 0 {
		quantityPerUnit = 1
	}

	base := q.Value * quantityPerUnit
	if _, ok := recordedIn[canonical(baseUnit)]; ok {
		base *= 1000
	}
	return base
}

// ToDisplayScale converts q to display scale
func ToDisplayScale(q Quantity, productType models.ProductType, quantityPerUnit float64, baseUnit string) float64 {
	if q.Scale == ScaleDisplay {
		return q.Value
	}
	return DisplayRatio(q.Value, productType, quantityPerUnit, baseUnit)
}

// MinQuantity is the smallest quantity a cart line may hold
func MinQuantity(productType models.ProductType) float64 {
	if productType == models.ProductTypeWeight || productType == models.ProductTypeVolume {
		return 0.01
	}
	return 1
}

// DisplayUnit is the label of one sellable unit of a product
func DisplayUnit(productType models.ProductType, quantityPerUnit float64, baseUnit string) string {
	if productType != models.ProductTypeWeight && productType != models.ProductTypeVolume {
		return Piece
	}
	if quantityPerUnit <= 0 {
		quantityPerUnit = 1
	}
	return Label(quantityPerUnit, canonical(baseUnit))
}

// Label renders a display unit label such as "250g" or "1l"
func Label(quantityPerUnit float64, baseUnit string) string {
	return strconv.FormatFloat(quantityPerUnit, 'f', -1, 64) + baseUnit
}

func canonical(unit string) string {
	if u, ok := ParseUnit(unit); ok {
		return u
	}
	return strings.ToLower(strings.TrimSpace(unit))
}
