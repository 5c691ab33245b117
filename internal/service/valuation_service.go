package service

import (
	"context"
	"fmt"

	"pos-checkout/internal/util"
	"pos-checkout/internal/valuation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ValuationService values the catalog's current inventory
type ValuationService struct {
	catalog ProductCatalog
	limit   decimal.Decimal
	logger  *zap.Logger
}

// NewValuationService creates a new valuation service
func NewValuationService(catalog ProductCatalog, limit decimal.Decimal) *ValuationService {
	return &ValuationService{
		catalog: catalog,
		limit:   limit,
		logger:  util.GetLogger(),
	}
}

// Valuate fetches a catalog snapshot and values it at cost
func (s *ValuationService) Valuate(ctx context.Context) (*valuation.Report, error) {
	ctx, span := util.StartSpan(ctx, "ValuationService.Valuate")
	defer span.End()

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	report := valuation.Valuate(products, s.limit)

	for _, line := range report.Flagged() {
		util.InventoryImplausibleValuesTotal.Inc()
		s.logger.Warn("Implausible inventory value",
			zap.String("sku", line.SKU),
			zap.String("value", line.Value.String()))
	}
	if report.TotalImplausible {
		s.logger.Warn("Implausible inventory total", zap.String("total", report.Total.String()))
	} else {
		util.InventoryValue.Set(report.Total.InexactFloat64())
	}

	return &report, nil
}
