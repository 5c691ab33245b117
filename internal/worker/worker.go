package worker

import (
	"context"

	"pos-checkout/internal/broker"
	"pos-checkout/internal/service"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// StockAlertWorker raises low-stock alerts for products in settled transactions
type StockAlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker
func NewStockAlertWorker(
	consumer *broker.Consumer,
	alerts *service.StockAlertService,
) *StockAlertWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnTransactionSettled(alerts.HandleTransactionSettled)

	return &StockAlertWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker")
	return w.consumer.Close()
}
