package service

import (
	"context"
	"errors"
	"fmt"

	"pos-checkout/internal/models"
	"pos-checkout/internal/units"
	"pos-checkout/internal/util"
	"pos-checkout/internal/valuation"

	"go.uber.org/zap"
)

// StockAlertService re-checks sold products and raises low-stock alerts
type StockAlertService struct {
	catalog   ProductCatalog
	publisher EventPublisher
	logger    *zap.Logger
}

// NewStockAlertService creates a new stock alert service
func NewStockAlertService(catalog ProductCatalog, publisher EventPublisher) *StockAlertService {
	return &StockAlertService{
		catalog:   catalog,
		publisher: orNoop(publisher),
		logger:    util.GetLogger(),
	}
}

// HandleTransactionSettled classifies every product in a settled transaction
// and publishes an alert for each one that is low or out of stock
func (s *StockAlertService) HandleTransactionSettled(ctx context.Context, event *models.TransactionSettledEvent) error {
	ctx, span := util.StartSpan(ctx, "StockAlertService.HandleTransactionSettled")
	defer span.End()

	s.logger.Info("Checking stock after settlement",
		zap.String("transaction_number", event.TransactionNumber),
		zap.Int("skus", len(event.SKUs)))

	seen := make(map[string]bool, len(event.SKUs))
	for _, sku := range event.SKUs {
		if seen[sku] {
			continue
		}
		seen[sku] = true

		product, err := s.catalog.LookupBySKU(ctx, sku)
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("Sold product no longer in catalog", zap.String("sku", sku))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", sku, err)
		}

		status := valuation.ClassifyProduct(*product)
		if status == valuation.InStock {
			continue
		}

		util.LowStockAlertsTotal.WithLabelValues(string(status)).Inc()
		alert := &models.LowStockDetectedEvent{
			BaseEvent:       newBaseEvent(models.EventTypeLowStockDetected),
			ProductID:       product.ID,
			SKU:             product.SKU,
			Status:          string(status),
			DisplayQuantity: units.DisplayRatio(product.QuantityInStock, product.ProductType, product.QuantityPerUnit, product.BaseUnit),
			LowStockLevel:   product.LowStockLevel,
		}
		if err := s.publisher.PublishLowStockDetected(ctx, alert); err != nil {
			s.logger.Error("Failed to publish LowStockDetected event", zap.Error(err))
		}
	}

	return nil
}
