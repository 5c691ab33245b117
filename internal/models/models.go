package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType is how a product is measured when sold
type ProductType string

// Product types
const (
	ProductTypeCount  ProductType = "count"
	ProductTypeWeight ProductType = "weight"
	ProductTypeVolume ProductType = "volume"
)

// Valid reports whether t is one of the known product types
func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeCount, ProductTypeWeight, ProductTypeVolume:
		return true
	}
	return false
}

// Product represents a catalog product as seen by the terminal.
// QuantityInStock is stored in base units, LowStockLevel in display units.
type Product struct {
	ID              int64           `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	ProductType     ProductType     `json:"product_type"`
	BaseUnit        string          `json:"base_unit"`
	QuantityPerUnit float64         `json:"quantity_per_unit"`
	QuantityInStock float64         `json:"quantity_in_stock"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	LowStockLevel   float64         `json:"low_stock_level"`
}

// CreateProductPayload is a normalized catalog create request
type CreateProductPayload struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name" validate:"required"`
	Category        string          `json:"category"`
	ProductType     ProductType     `json:"product_type" validate:"required"`
	BaseUnit        string          `json:"base_unit" validate:"required"`
	QuantityPerUnit float64         `json:"quantity_per_unit" validate:"gt=0"`
	QuantityInStock float64         `json:"quantity_in_stock" validate:"gt=0"`
	CostPrice       decimal.Decimal `json:"cost_price" validate:"gte=0"`
	SellingPrice    decimal.Decimal `json:"selling_price" validate:"gt=0"`
	LowStockLevel   float64         `json:"low_stock_level" validate:"gte=0"`
}

// SettlementItem is one line submitted to the ledger (base-unit quantity)
type SettlementItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

// SettlementRequest is the body submitted to the ledger
type SettlementRequest struct {
	Items              []SettlementItem `json:"items"`
	PaymentType        string           `json:"payment_type"`
	MoneyReceived      decimal.Decimal  `json:"money_received"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	ReferenceNumber    string           `json:"reference_number,omitempty"`
}

// Transaction is the authoritative ledger record returned by settlement
type Transaction struct {
	TransactionNumber string           `json:"transaction_number"`
	TransactionID     int64            `json:"transaction_id"`
	Total             decimal.Decimal  `json:"total"`
	Change            decimal.Decimal  `json:"change"`
	PaymentType       string           `json:"payment_type"`
	MoneyReceived     decimal.Decimal  `json:"money_received"`
	Items             []SettlementItem `json:"items"`
	SettledAt         time.Time        `json:"settled_at"`
}

// PendingSettlement is persisted before leaving for the payment provider
// and removed on finalize or cancel. Reference doubles as the idempotency key.
type PendingSettlement struct {
	Reference          string           `json:"reference"`
	SessionID          string           `json:"session_id"`
	Items              []SettlementItem `json:"items"`
	SKUs               []string         `json:"skus,omitempty"`
	Total              decimal.Decimal  `json:"total"`
	PaymentType        string           `json:"payment_type"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Payment types
const (
	PaymentTypeCash         = "cash"
	PaymentTypeOnline       = "online"
	PaymentTypeCard         = "card"
	PaymentTypeBankTransfer = "bank_transfer"
	PaymentTypeEWallet      = "e_wallet"
)

// IsDirectPaymentType reports whether t settles immediately without cash handling
func IsDirectPaymentType(t string) bool {
	switch t {
	case PaymentTypeCard, PaymentTypeBankTransfer, PaymentTypeEWallet:
		return true
	}
	return false
}
