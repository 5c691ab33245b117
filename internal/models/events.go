package models

import "time"

// Event types
const (
	EventTypeTransactionSettled = "TRANSACTION_SETTLED"
	EventTypePaymentRedirected  = "PAYMENT_REDIRECTED"
	EventTypePaymentCancelled   = "PAYMENT_CANCELLED"
	EventTypeInventoryImported  = "INVENTORY_IMPORTED"
	EventTypeLowStockDetected   = "LOW_STOCK_DETECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionSettledEvent published when the ledger accepts a settlement
type TransactionSettledEvent struct {
	BaseEvent
	TransactionID     int64            `json:"transaction_id"`
	TransactionNumber string           `json:"transaction_number"`
	SessionID         string           `json:"session_id"`
	PaymentType       string           `json:"payment_type"`
	Total             string           `json:"total"`
	Items             []SettlementItem `json:"items"`
	SKUs              []string         `json:"skus"`
}

// PaymentRedirectedEvent published when control is handed to the payment provider
type PaymentRedirectedEvent struct {
	BaseEvent
	Reference string `json:"reference"`
	SessionID string `json:"session_id"`
	Total     string `json:"total"`
}

// PaymentCancelledEvent published when the provider returns with a cancel flag
type PaymentCancelledEvent struct {
	BaseEvent
	Reference string `json:"reference"`
	SessionID string `json:"session_id"`
}

// InventoryImportedEvent published after a bulk import
type InventoryImportedEvent struct {
	BaseEvent
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// LowStockDetectedEvent published by the stock alert worker
type LowStockDetectedEvent struct {
	BaseEvent
	ProductID       int64   `json:"product_id"`
	SKU             string  `json:"sku"`
	Status          string  `json:"status"`
	DisplayQuantity float64 `json:"display_quantity"`
	LowStockLevel   float64 `json:"low_stock_level"`
}
