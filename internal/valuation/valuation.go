// Package valuation classifies stock levels and values inventory at cost.
package valuation

import (
	"pos-checkout/internal/models"
	"pos-checkout/internal/units"

	"github.com/shopspring/decimal"
)

// StockStatus of a product
type StockStatus string

// Stock statuses
const (
	OutOfStock StockStatus = "out_of_stock"
	LowStock   StockStatus = "low_stock"
	InStock    StockStatus = "in_stock"
)

// DefaultImplausibleValue is the magnitude above which a value is flagged
var DefaultImplausibleValue = decimal.NewFromInt(1_000_000_000)

// Classify compares a display quantity with a display-unit threshold
func Classify(displayQty, lowStockLevel float64) StockStatus {
	switch {
	case displayQty <= 0:
		return OutOfStock
	case displayQty < lowStockLevel:
		return LowStock
	default:
		return InStock
	}
}

// ClassifyProduct converts the product's stock and classifies it
func ClassifyProduct(p models.Product) StockStatus {
	return Classify(displayRatio(p), p.LowStockLevel)
}

// Line is the valuation of a single product
type Line struct {
	ProductID       int64           `json:"product_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	DisplayQuantity float64         `json:"display_quantity"`
	DisplayUnit     string          `json:"display_unit"`
	Status          StockStatus     `json:"status"`
	Value           decimal.Decimal `json:"value"`
	Implausible     bool            `json:"implausible"`
}

// Report is the inventory valuation of a catalog snapshot
type Report struct {
	Lines            []Line              `json:"lines"`
	Total            decimal.Decimal     `json:"total"`
	TotalImplausible bool                `json:"total_implausible"`
	StatusCounts     map[StockStatus]int `json:"status_counts"`
}

// Flagged returns the lines whose value exceeded the plausibility limit
func (r Report) Flagged() []Line {
	var out []Line
	for _, l := range r.Lines {
		if l.Implausible {
			out = append(out, l)
		}
	}
	return out
}

// Valuate values each product at cost_price × display quantity. Values above
// limit are flagged, never rejected. A non-positive limit uses DefaultImplausibleValue.
func Valuate(products []models.Product, limit decimal.Decimal) Report {
	if !limit.IsPositive() {
		limit = DefaultImplausibleValue
	}

	report := Report{
		Lines:        make([]Line, 0, len(products)),
		Total:        decimal.Zero,
		StatusCounts: make(map[StockStatus]int),
	}

	for _, p := range products {
		qty := displayRatio(p)
		value := p.CostPrice.Mul(decimal.NewFromFloat(qty)).Round(2)
		status := Classify(qty, p.LowStockLevel)

		report.Lines = append(report.Lines, Line{
			ProductID:       p.ID,
			SKU:             p.SKU,
			Name:            p.Name,
			Category:        p.Category,
			DisplayQuantity: qty,
			DisplayUnit:     units.DisplayUnit(p.ProductType, p.QuantityPerUnit, p.BaseUnit),
			Status:          status,
			Value:           value,
			Implausible:     value.Abs().GreaterThan(limit),
		})
		report.Total = report.Total.Add(value)
		report.StatusCounts[status]++
	}

	report.TotalImplausible = report.Total.Abs().GreaterThan(limit)
	return report
}

func displayRatio(p models.Product) float64 {
	return units.DisplayRatio(p.QuantityInStock, p.ProductType, p.QuantityPerUnit, p.BaseUnit)
}
