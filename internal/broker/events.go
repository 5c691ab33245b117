package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	transactions *Producer
	alerts       *Producer
}

// NewEventPublisher creates a new event publisher. Sales and payment events
// go to transactions; inventory events go to alerts.
func NewEventPublisher(transactions, alerts *Producer) *EventPublisher {
	return &EventPublisher{transactions: transactions, alerts: alerts}
}

// PublishTransactionSettled publishes TransactionSettled event
func (ep *EventPublisher) PublishTransactionSettled(ctx context.Context, event *models.TransactionSettledEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	return ep.transactions.PublishEvent(ctx, key, event)
}

// PublishPaymentRedirected publishes PaymentRedirected event
func (ep *EventPublisher) PublishPaymentRedirected(ctx context.Context, event *models.PaymentRedirectedEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	return ep.transactions.PublishEvent(ctx, key, event)
}

// PublishPaymentCancelled publishes PaymentCancelled event
func (ep *EventPublisher) PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	return ep.transactions.PublishEvent(ctx, key, event)
}

// PublishInventoryImported publishes InventoryImported event
func (ep *EventPublisher) PublishInventoryImported(ctx context.Context, event *models.InventoryImportedEvent) error {
	return ep.alerts.PublishEvent(ctx, "inventory-import", event)
}

// PublishLowStockDetected publishes LowStockDetected event
func (ep *EventPublisher) PublishLowStockDetected(ctx context.Context, event *models.LowStockDetectedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.alerts.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onTransactionSettled func(context.Context, *models.TransactionSettledEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnTransactionSettled registers a handler for TransactionSettled events
func (eh *EventHandler) OnTransactionSettled(handler func(context.Context, *models.TransactionSettledEvent) error) {
	eh.onTransactionSettled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeTransactionSettled:
		if eh.onTransactionSettled != nil {
			var event models.TransactionSettledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TransactionSettled event: %w", err)
			}
			return eh.onTransactionSettled(ctx, &event)
		}

	case models.EventTypePaymentRedirected, models.EventTypePaymentCancelled:
		// informational on this topic

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
