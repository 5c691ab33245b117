package catalog

import (
	"errors"
	"fmt"
	"strings"

	"pos-checkout/internal/models"
	"pos-checkout/internal/units"

	"github.com/shopspring/decimal"
)

// ErrMalformedProduct is returned when a catalog payload cannot be normalized
var ErrMalformedProduct = errors.New("malformed catalog product")

// productDTO is the loosely typed product shape served by the catalog.
// Older catalog builds send id/quantity_in_stock, newer ones product_id/stock_quantity.
type productDTO struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	ProductType     string          `json:"product_type"`
	BaseUnit        string          `json:"base_unit"`
	QuantityPerUnit float64         `json:"quantity_per_unit"`
	QuantityInStock *float64        `json:"quantity_in_stock"`
	StockQuantity   *float64        `json:"stock_quantity"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	LowStockLevel   float64         `json:"low_stock_level"`
}

func normalize(dto productDTO) (models.Product, error) {
	p := models.Product{
		ID:              dto.ProductID,
		SKU:             strings.TrimSpace(dto.SKU),
		Name:            dto.Name,
		Category:        dto.Category,
		QuantityPerUnit: dto.QuantityPerUnit,
		CostPrice:       dto.CostPrice,
		SellingPrice:    dto.SellingPrice,
		LowStockLevel:   dto.LowStockLevel,
	}
	if p.ID == 0 {
		p.ID = dto.ID
	}
	if p.SKU == "" {
		return p, fmt.Errorf("%w: missing sku", ErrMalformedProduct)
	}

	switch {
	case dto.StockQuantity != nil:
		p.QuantityInStock = *dto.StockQuantity
	case dto.QuantityInStock != nil:
		p.QuantityInStock = *dto.QuantityInStock
	}
	if p.QuantityInStock < 0 {
		p.QuantityInStock = 0
	}

	baseUnit, unitOK := units.ParseUnit(dto.BaseUnit)
	productType, typeOK := units.ParseProductType(dto.ProductType)
	if !typeOK && unitOK {
		productType, typeOK = units.Dimension(baseUnit)
	}
	if !typeOK {
		if dto.ProductType != "" {
			return p, fmt.Errorf("%w: sku %s has unknown product_type %q", ErrMalformedProduct, p.SKU, dto.ProductType)
		}
		productType = models.ProductTypeCount
	}
	p.ProductType = productType

	switch {
	case productType == models.ProductTypeCount:
		p.BaseUnit = units.Piece
	case !unitOK:
		return p, fmt.Errorf("%w: sku %s has unknown base_unit %q", ErrMalformedProduct, p.SKU, dto.BaseUnit)
	default:
		if dim, _ := units.Dimension(baseUnit); dim != productType {
			return p, fmt.Errorf("%w: sku %s base_unit %s does not measure %s", ErrMalformedProduct, p.SKU, baseUnit, productType)
		}
		p.BaseUnit = baseUnit
	}

	if p.QuantityPerUnit <= 0 {
		p.QuantityPerUnit = 1
	}
	return p, nil
}
