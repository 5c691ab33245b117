package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pos-checkout/internal/importer"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// ErrNothingToImport is returned when no row of a file is valid
var ErrNothingToImport = errors.New("no valid rows to import")

// ImportService bulk-loads inventory sheets into the catalog
type ImportService struct {
	catalog   ProductCatalog
	publisher EventPublisher
	logger    *zap.Logger
}

// NewImportService creates a new import service
func NewImportService(catalog ProductCatalog, publisher EventPublisher) *ImportService {
	return &ImportService{
		catalog:   catalog,
		publisher: orNoop(publisher),
		logger:    util.GetLogger(),
	}
}

// ImportFile parses an uploaded .csv or .xlsx file and imports it
func (s *ImportService) ImportFile(ctx context.Context, filename string, r io.ReaderAt, size int64) (*importer.Report, error) {
	table, err := importer.ParseFile(filename, r, size)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, table)
}

// Import validates every row, submits the valid ones in one batch and
// merges the catalog's per-row outcome with local validation errors.
// There is no rollback: rows the catalog accepted stay created.
func (s *ImportService) Import(ctx context.Context, table *importer.Table) (*importer.Report, error) {
	ctx, span := util.StartSpan(ctx, "ImportService.Import")
	defer span.End()

	parsed, err := importer.Parse(table)
	if err != nil {
		return nil, err
	}

	report := &importer.Report{}
	for _, rowErr := range parsed.Errors {
		report.AddError(rowErr)
	}
	util.ImportRowsTotal.WithLabelValues("invalid").Add(float64(len(parsed.Errors)))

	if len(parsed.Rows) == 0 {
		report.Sort()
		return report, ErrNothingToImport
	}

	payloads := make([]models.CreateProductPayload, len(parsed.Rows))
	for i, row := range parsed.Rows {
		payloads[i] = row.Payload
	}

	result, err := s.catalog.BulkCreate(ctx, payloads)
	if err != nil {
		return nil, fmt.Errorf("failed to submit import: %w", err)
	}

	rejected := 0
	for _, e := range result.Errors {
		row := 0
		if e.Index >= 0 && e.Index < len(parsed.Rows) {
			row = parsed.Rows[e.Index].Index
		}
		report.AddRowError(row, e.Error)
		rejected++
	}
	report.SuccessCount = len(parsed.Rows) - rejected
	report.Sort()

	util.ImportRowsTotal.WithLabelValues("rejected").Add(float64(rejected))
	util.ImportRowsTotal.WithLabelValues("imported").Add(float64(report.SuccessCount))

	event := &models.InventoryImportedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeInventoryImported),
		SuccessCount: report.SuccessCount,
		ErrorCount:   len(report.Errors),
	}
	if err := s.publisher.PublishInventoryImported(ctx, event); err != nil {
		s.logger.Error("Failed to publish InventoryImported event", zap.Error(err))
	}

	s.logger.Info("Inventory imported",
		zap.Int("success", report.SuccessCount),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}
