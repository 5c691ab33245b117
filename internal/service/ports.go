package service

import (
	"context"

	"pos-checkout/internal/catalog"
	"pos-checkout/internal/models"
)

// Ledger settles transactions
type Ledger interface {
	Settle(ctx context.Context, req *models.SettlementRequest) (*models.Transaction, error)
}

// ProductCatalog is the catalog surface used outside the cart
type ProductCatalog interface {
	LookupBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	BulkCreate(ctx context.Context, payloads []models.CreateProductPayload) (*catalog.BulkCreateResult, error)
}

// PendingStore persists redirect settlements across the provider round trip.
// SavePending never overwrites a live record and returns models.ErrAlreadyExists instead.
// ClaimGuard must be atomic and return models.ErrNotFound when no record exists.
// A claimed guard is never released; the record can only be deleted.
type PendingStore interface {
	SavePending(ctx context.Context, p *models.PendingSettlement) error
	LoadPending(ctx context.Context, reference string) (*models.PendingSettlement, error)
	ClaimGuard(ctx context.Context, reference string) (bool, error)
	DeletePending(ctx context.Context, reference string) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishTransactionSettled(ctx context.Context, event *models.TransactionSettledEvent) error
	PublishPaymentRedirected(ctx context.Context, event *models.PaymentRedirectedEvent) error
	PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error
	PublishInventoryImported(ctx context.Context, event *models.InventoryImportedEvent) error
	PublishLowStockDetected(ctx context.Context, event *models.LowStockDetectedEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishTransactionSettled(context.Context, *models.TransactionSettledEvent) error {
	return nil
}

func (noopPublisher) PublishPaymentRedirected(context.Context, *models.PaymentRedirectedEvent) error {
	return nil
}

func (noopPublisher) PublishPaymentCancelled(context.Context, *models.PaymentCancelledEvent) error {
	return nil
}

func (noopPublisher) PublishInventoryImported(context.Context, *models.InventoryImportedEvent) error {
	return nil
}

func (noopPublisher) PublishLowStockDetected(context.Context, *models.LowStockDetectedEvent) error {
	return nil
}

func orNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
