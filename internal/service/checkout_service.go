package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-checkout/internal/cart"
	"pos-checkout/internal/catalog"
	"pos-checkout/internal/models"
	"pos-checkout/internal/payment"
	"pos-checkout/internal/pricing"
	"pos-checkout/internal/units"
	"pos-checkout/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Finalize outcomes
const (
	OutcomeSettled   = "settled"
	OutcomeCancelled = "cancelled"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
)

// CheckoutService drives carts through settlement
type CheckoutService struct {
	sessions  *SessionRegistry
	ledger    Ledger
	gateway   payment.Gateway
	pending   PendingStore
	publisher EventPublisher
	publicURL string
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	sessions *SessionRegistry,
	ledger Ledger,
	gateway payment.Gateway,
	pending PendingStore,
	publisher EventPublisher,
	publicURL string,
) *CheckoutService {
	return &CheckoutService{
		sessions:  sessions,
		ledger:    ledger,
		gateway:   gateway,
		pending:   pending,
		publisher: orNoop(publisher),
		publicURL: publicURL,
		logger:    util.GetLogger(),
	}
}

// SettlementResult is returned after a cash or direct settlement
type SettlementResult struct {
	Transaction       *models.Transaction `json:"transaction"`
	Change            decimal.Decimal     `json:"change"`
	ProvisionalNumber string              `json:"provisional_number"`
}

// RedirectResult carries the provider page for the customer
type RedirectResult struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

// FinalizeResult is the outcome of a provider return
type FinalizeResult struct {
	Outcome     string              `json:"outcome"`
	Reference   string              `json:"reference"`
	SessionID   string              `json:"session_id,omitempty"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
}

// CreateSession opens a new cashier session
func (s *CheckoutService) CreateSession() *SessionView {
	sess := s.sessions.Create()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.logger.Info("Session opened", zap.String("session_id", sess.ID))
	return sess.view()
}

// GetSession returns a snapshot of a session
func (s *CheckoutService) GetSession(id string) (*SessionView, error) {
	return s.withSession(id, func(sess *Session) error { return nil })
}

// CloseSession discards a session that has nothing in flight
func (s *CheckoutService) CloseSession(id string) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state.inFlight() {
		return cart.ErrCheckoutInProgress
	}
	s.sessions.Delete(id)
	return nil
}

// AddItem resolves a scanned SKU and adds qty display units to the cart
func (s *CheckoutService) AddItem(ctx context.Context, sessionID, sku string, qty float64) (*SessionView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.AddItem", attribute.String("sku", sku))
	defer span.End()

	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() {
			return cart.ErrCheckoutInProgress
		}
		sess.touch()

		line, err := sess.cart.AddBySKU(ctx, sku, qty)
		if err != nil {
			util.CartRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
			s.logger.Info("Item rejected",
				zap.String("session_id", sess.ID),
				zap.String("sku", sku),
				zap.Error(err))
			return err
		}

		util.CartItemsAddedTotal.Inc()
		s.logger.Debug("Item added",
			zap.String("session_id", sess.ID),
			zap.String("sku", line.SKU),
			zap.Float64("quantity", line.Quantity))
		return nil
	})
}

// EditItem sets the quantity of a cart line
func (s *CheckoutService) EditItem(sessionID string, index int, q units.Quantity) (*SessionView, error) {
	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() {
			return cart.ErrCheckoutInProgress
		}
		sess.touch()

		if _, err := sess.cart.EditQuantity(index, q); err != nil {
			util.CartRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
			return err
		}
		return nil
	})
}

// RemoveItem deletes a cart line
func (s *CheckoutService) RemoveItem(sessionID string, index int) (*SessionView, error) {
	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() {
			return cart.ErrCheckoutInProgress
		}
		sess.touch()
		return sess.cart.Remove(index)
	})
}

// ClearCart discards the sale in progress
func (s *CheckoutService) ClearCart(sessionID string) (*SessionView, error) {
	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() {
			return cart.ErrCheckoutInProgress
		}
		sess.touch()
		sess.cart.Cancel()
		sess.discount = nil
		sess.paymentType = ""
		sess.state = StateIdle
		return nil
	})
}

// ApplyDiscount replaces the active discount
func (s *CheckoutService) ApplyDiscount(sessionID string, kind pricing.DiscountKind, value decimal.Decimal) (*SessionView, error) {
	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() {
			return cart.ErrCheckoutInProgress
		}
		d, err := pricing.NewDiscount(kind, value)
		if err != nil {
			return err
		}
		sess.touch()
		sess.discount = d
		return nil
	})
}

// ClearDiscount removes the active discount
func (s *CheckoutService) ClearDiscount(sessionID string) (*SessionView, error) {
	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() {
			return cart.ErrCheckoutInProgress
		}
		sess.touch()
		sess.discount = nil
		return nil
	})
}

// SelectPayment chooses how the sale will be paid
func (s *CheckoutService) SelectPayment(sessionID, paymentType string) (*SessionView, error) {
	if !validPaymentType(paymentType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentType, paymentType)
	}
	return s.withSession(sessionID, func(sess *Session) error {
		return sess.selectPayment(paymentType)
	})
}

// SettleCash settles the cart for cash. Money received below the total is
// rejected before anything is submitted.
func (s *CheckoutService) SettleCash(ctx context.Context, sessionID string, moneyReceived decimal.Decimal) (*SettlementResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SettleCash")
	defer span.End()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.selectPayment(models.PaymentTypeCash); err != nil {
		return nil, err
	}
	total := sess.total()
	if moneyReceived.LessThan(total) {
		return nil, fmt.Errorf("%w: total %s, received %s", ErrInsufficientPayment, total.StringFixed(2), moneyReceived.StringFixed(2))
	}

	sess.state = StateCashConfirm
	return s.settleSession(ctx, sess, models.PaymentTypeCash, moneyReceived)
}

// SettleDirect settles the cart with a card, bank transfer or e-wallet payment
func (s *CheckoutService) SettleDirect(ctx context.Context, sessionID, paymentType string) (*SettlementResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SettleDirect", attribute.String("payment_type", paymentType))
	defer span.End()

	if !models.IsDirectPaymentType(paymentType) {
		return nil, fmt.Errorf("%w: %s is not a direct payment type", ErrInvalidPaymentType, paymentType)
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.selectPayment(paymentType); err != nil {
		return nil, err
	}

	sess.state = StateDirectSettle
	return s.settleSession(ctx, sess, paymentType, sess.total())
}

// settleSession submits the frozen cart to the ledger. Lock must be held.
func (s *CheckoutService) settleSession(ctx context.Context, sess *Session, paymentType string, moneyReceived decimal.Decimal) (*SettlementResult, error) {
	if err := sess.cart.BeginCheckout(); err != nil {
		sess.state = StateIdle
		return nil, err
	}

	total := sess.total()
	pct, amount := pricing.SettlementFields(sess.discount)
	req := &models.SettlementRequest{
		Items:              sess.cart.SettlementItems(),
		PaymentType:        paymentType,
		MoneyReceived:      moneyReceived,
		DiscountPercentage: pct,
		DiscountAmount:     amount,
		ReferenceNumber:    sess.provisionalNumber,
	}
	skus := sess.cart.SKUs()

	tx, err := s.submit(ctx, req)
	if err != nil {
		sess.failed(err)
		s.logger.Error("Settlement failed",
			zap.String("session_id", sess.ID),
			zap.String("payment_type", paymentType),
			zap.Error(err))
		return nil, err
	}

	change := adoptTotals(tx, req, total)
	sess.settled(tx, change)

	s.publishSettled(ctx, sess.ID, tx, skus)
	s.logger.Info("Transaction settled",
		zap.String("session_id", sess.ID),
		zap.String("transaction_number", tx.TransactionNumber),
		zap.String("payment_type", paymentType),
		zap.String("total", tx.Total.StringFixed(2)))

	return &SettlementResult{
		Transaction:       tx,
		Change:            change,
		ProvisionalNumber: sess.provisionalNumber,
	}, nil
}

// BeginRedirect persists the settlement and hands the customer to the
// payment provider. The record is durable before the provider is called.
func (s *CheckoutService) BeginRedirect(ctx context.Context, sessionID string) (*RedirectResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.BeginRedirect")
	defer span.End()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.selectPayment(models.PaymentTypeOnline); err != nil {
		return nil, err
	}
	total := sess.total()
	if !total.IsPositive() {
		return nil, ErrNothingToPay
	}
	if err := sess.cart.BeginCheckout(); err != nil {
		return nil, err
	}

	pct, amount := pricing.SettlementFields(sess.discount)
	record := &models.PendingSettlement{
		Reference:          sess.provisionalNumber,
		SessionID:          sess.ID,
		Items:              sess.cart.SettlementItems(),
		SKUs:               sess.cart.SKUs(),
		Total:              total,
		PaymentType:        models.PaymentTypeOnline,
		DiscountPercentage: pct,
		DiscountAmount:     amount,
		CreatedAt:          time.Now(),
	}

	if err := s.pending.SavePending(ctx, record); err != nil {
		sess.abandoned()
		return nil, fmt.Errorf("failed to persist pending settlement: %w", err)
	}

	successURL, cancelURL := payment.ReturnURLs(s.publicURL, record.Reference)
	resp, err := s.gateway.Initiate(ctx, &payment.InitiateRequest{
		Amount:          total,
		Description:     fmt.Sprintf("Sale %s", record.Reference),
		ReferenceNumber: record.Reference,
		SuccessURL:      successURL,
		CancelURL:       cancelURL,
	})
	if err != nil {
		if delErr := s.pending.DeletePending(ctx, record.Reference); delErr != nil {
			s.logger.Error("Failed to remove pending settlement", zap.String("reference", record.Reference), zap.Error(delErr))
		}
		sess.abandoned()
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}

	sess.state = StateRedirectPending
	sess.pendingReference = record.Reference
	sess.updatedAt = time.Now()
	util.RedirectsStartedTotal.Inc()

	event := &models.PaymentRedirectedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentRedirected),
		Reference: record.Reference,
		SessionID: sess.ID,
		Total:     total.StringFixed(2),
	}
	if err := s.publisher.PublishPaymentRedirected(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentRedirected event", zap.Error(err))
	}

	s.logger.Info("Payment redirect started",
		zap.String("session_id", sess.ID),
		zap.String("reference", record.Reference))
	return &RedirectResult{Reference: record.Reference, CheckoutURL: resp.CheckoutURL}, nil
}

// FinalizeRedirect handles the provider's return. A success settles the
// pending record at most once no matter how often it is delivered. A ledger
// rejection spends the record. A cancel drops it and leaves the cart as it was.
func (s *CheckoutService) FinalizeRedirect(ctx context.Context, reference string, status payment.ReturnStatus) (*FinalizeResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.FinalizeRedirect",
		attribute.String("reference", reference),
		attribute.String("status", string(status)))
	defer span.End()

	util.RedirectReturnsTotal.WithLabelValues(string(status)).Inc()

	if status == payment.ReturnCancel {
		return s.cancelRedirect(ctx, reference)
	}

	record, err := s.pending.LoadPending(ctx, reference)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Info("No pending settlement for return", zap.String("reference", reference))
		return &FinalizeResult{Outcome: OutcomeNotFound, Reference: reference}, nil
	}
	if err != nil {
		return nil, err
	}

	claimed, err := s.pending.ClaimGuard(ctx, reference)
	if errors.Is(err, models.ErrNotFound) {
		return &FinalizeResult{Outcome: OutcomeNotFound, Reference: reference}, nil
	}
	if err != nil {
		return nil, err
	}
	if !claimed {
		util.DuplicateFinalizeSuppressedTotal.Inc()
		s.logger.Warn("Duplicate finalize suppressed", zap.String("reference", reference))
		return &FinalizeResult{Outcome: OutcomeDuplicate, Reference: reference, SessionID: record.SessionID}, nil
	}

	req := &models.SettlementRequest{
		Items:              record.Items,
		PaymentType:        record.PaymentType,
		MoneyReceived:      record.Total,
		DiscountPercentage: record.DiscountPercentage,
		DiscountAmount:     record.DiscountAmount,
		ReferenceNumber:    record.Reference,
	}

	tx, err := s.submit(ctx, req)
	if err != nil {
		// The record is spent; replays of this return find nothing to settle
		if delErr := s.pending.DeletePending(ctx, reference); delErr != nil {
			s.logger.Error("Failed to delete pending settlement", zap.String("reference", reference), zap.Error(delErr))
		}
		s.onSession(record.SessionID, reference, func(sess *Session) { sess.redirectFailed(err) })
		s.logger.Error("Redirect settlement failed", zap.String("reference", reference), zap.Error(err))
		return nil, err
	}

	if err := s.pending.DeletePending(ctx, reference); err != nil {
		s.logger.Error("Failed to delete pending settlement", zap.String("reference", reference), zap.Error(err))
	}

	change := adoptTotals(tx, req, record.Total)
	s.onSession(record.SessionID, reference, func(sess *Session) { sess.settled(tx, change) })
	s.publishSettled(ctx, record.SessionID, tx, record.SKUs)

	s.logger.Info("Redirect settlement completed",
		zap.String("reference", reference),
		zap.String("transaction_number", tx.TransactionNumber))
	return &FinalizeResult{
		Outcome:     OutcomeSettled,
		Reference:   reference,
		SessionID:   record.SessionID,
		Transaction: tx,
	}, nil
}

func (s *CheckoutService) cancelRedirect(ctx context.Context, reference string) (*FinalizeResult, error) {
	record, err := s.pending.LoadPending(ctx, reference)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err := s.pending.DeletePending(ctx, reference); err != nil {
		return nil, err
	}

	result := &FinalizeResult{Outcome: OutcomeCancelled, Reference: reference}
	if record == nil {
		return result, nil
	}
	result.SessionID = record.SessionID

	s.onSession(record.SessionID, reference, func(sess *Session) { sess.abandoned() })

	event := &models.PaymentCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentCancelled),
		Reference: reference,
		SessionID: record.SessionID,
	}
	if err := s.publisher.PublishPaymentCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentCancelled event", zap.Error(err))
	}

	s.logger.Info("Payment redirect cancelled", zap.String("reference", reference))
	return result, nil
}

// CancelCheckout abandons a redirect the customer never completed
func (s *CheckoutService) CancelCheckout(ctx context.Context, sessionID string) (*SessionView, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	ref := sess.pendingReference
	sess.mu.Unlock()

	if ref != "" {
		if _, err := s.cancelRedirect(ctx, ref); err != nil {
			return nil, err
		}
	}

	return s.withSession(sessionID, func(sess *Session) error {
		if sess.state.inFlight() || sess.state == StatePaymentSelected {
			sess.abandoned()
		}
		return nil
	})
}

func (s *CheckoutService) submit(ctx context.Context, req *models.SettlementRequest) (*models.Transaction, error) {
	start := time.Now()
	tx, err := s.ledger.Settle(ctx, req)
	util.SettlementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "upstream"
		var settleErr *catalog.SettlementError
		if errors.As(err, &settleErr) {
			reason = "rejected"
		}
		util.SettlementsFailedTotal.WithLabelValues(req.PaymentType, reason).Inc()
		return nil, err
	}

	util.SettlementsTotal.WithLabelValues(req.PaymentType).Inc()
	return tx, nil
}

// onSession applies fn to the session if it is still waiting on reference
func (s *CheckoutService) onSession(sessionID, reference string, fn func(*Session)) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.pendingReference != reference {
		return
	}
	fn(sess)
}

func (s *CheckoutService) withSession(id string, fn func(*Session) error) (*SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(sess); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

func (s *CheckoutService) publishSettled(ctx context.Context, sessionID string, tx *models.Transaction, skus []string) {
	event := &models.TransactionSettledEvent{
		BaseEvent:         newBaseEvent(models.EventTypeTransactionSettled),
		TransactionID:     tx.TransactionID,
		TransactionNumber: tx.TransactionNumber,
		SessionID:         sessionID,
		PaymentType:       tx.PaymentType,
		Total:             tx.Total.StringFixed(2),
		Items:             tx.Items,
		SKUs:              skus,
	}
	if err := s.publisher.PublishTransactionSettled(ctx, event); err != nil {
		s.logger.Error("Failed to publish TransactionSettled event", zap.Error(err))
	}
}

// adoptTotals fills in what the ledger left out and returns the change due.
// Server figures win over local ones.
func adoptTotals(tx *models.Transaction, req *models.SettlementRequest, localTotal decimal.Decimal) decimal.Decimal {
	if tx.Total.IsZero() {
		tx.Total = localTotal
	}
	if tx.PaymentType == "" {
		tx.PaymentType = req.PaymentType
	}
	if tx.MoneyReceived.IsZero() {
		tx.MoneyReceived = req.MoneyReceived
	}
	if len(tx.Items) == 0 {
		tx.Items = req.Items
	}
	if tx.SettledAt.IsZero() {
		tx.SettledAt = time.Now()
	}
	if tx.Change.IsZero() {
		tx.Change = decimal.Max(tx.MoneyReceived.Sub(tx.Total), decimal.Zero)
	}
	return tx.Change
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func validPaymentType(t string) bool {
	return t == models.PaymentTypeCash || t == models.PaymentTypeOnline || models.IsDirectPaymentType(t)
}

func rejectionReason(err error) string {
	var notFound *cart.NotFoundError
	var insufficient *cart.InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.Is(err, cart.ErrOutOfStock):
		return "out_of_stock"
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, cart.ErrFractionalQuantity):
		return "fractional_quantity"
	default:
		return "other"
	}
}
