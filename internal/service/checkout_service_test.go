package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"pos-checkout/internal/cart"
	"pos-checkout/internal/catalog"
	"pos-checkout/internal/models"
	"pos-checkout/internal/payment"
	"pos-checkout/internal/pricing"
	"pos-checkout/internal/store"
	"pos-checkout/internal/units"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	svc       *CheckoutService
	catalog   *fakeCatalog
	ledger    *fakeLedger
	gateway   *fakeGateway
	pending   *store.Memory
	publisher *fakePublisher
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		catalog:   newFakeCatalog(pen, rice),
		ledger:    &fakeLedger{},
		gateway:   &fakeGateway{},
		pending:   store.NewMemory(time.Hour),
		publisher: &fakePublisher{},
	}
	sessions := NewSessionRegistry(f.catalog, "7")
	f.svc = NewCheckoutService(sessions, f.ledger, f.gateway, f.pending, f.publisher, "http://pos.local")
	return f
}

// newSaleOf450 opens a session holding 3 pens (3 × 150)
func (f *checkoutFixture) newSaleOf450(t *testing.T) string {
	t.Helper()
	view := f.svc.CreateSession()
	_, err := f.svc.AddItem(context.Background(), view.ID, "PEN", 3)
	require.NoError(t, err)
	return view.ID
}

func TestSettleCashExactAmount(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	before, err := f.svc.GetSession(id)
	require.NoError(t, err)

	res, err := f.svc.SettleCash(context.Background(), id, decimal.NewFromInt(450))
	require.NoError(t, err)

	assert.True(t, res.Change.IsZero())
	assert.Equal(t, "TXN-0001", res.Transaction.TransactionNumber)
	assert.NotEqual(t, before.ProvisionalNumber, res.ProvisionalNumber)
	assert.Equal(t, 1, f.ledger.calls())

	req := f.ledger.requests[0]
	assert.Equal(t, models.PaymentTypeCash, req.PaymentType)
	assert.Equal(t, []models.SettlementItem{{ProductID: 1, Quantity: 3}}, req.Items)
	assert.Equal(t, before.ProvisionalNumber, req.ReferenceNumber)

	after, err := f.svc.GetSession(id)
	require.NoError(t, err)
	assert.Empty(t, after.Lines)
	assert.Equal(t, StateSettled, after.State)
	require.Len(t, f.publisher.settled, 1)
	assert.Equal(t, []string{"PEN"}, f.publisher.settled[0].SKUs)
}

func TestSettleCashInsufficientIsRejectedBeforeSubmission(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	_, err := f.svc.SettleCash(context.Background(), id, decimal.NewFromInt(400))
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	assert.Equal(t, 0, f.ledger.calls())

	view, err := f.svc.GetSession(id)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
	assert.Equal(t, StatePaymentSelected, view.State)
}

func TestSettleCashWithChangeAndDiscount(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	view, err := f.svc.ApplyDiscount(id, pricing.DiscountPercentage, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(405)))

	res, err := f.svc.SettleCash(context.Background(), id, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, res.Change.Equal(decimal.NewFromInt(95)), res.Change.String())

	req := f.ledger.requests[0]
	require.NotNil(t, req.DiscountPercentage)
	assert.True(t, req.DiscountPercentage.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, req.DiscountAmount)

	after, _ := f.svc.GetSession(id)
	assert.Nil(t, after.Discount)
}

func TestSettlementItemsUseBaseUnits(t *testing.T) {
	f := newCheckoutFixture()
	view := f.svc.CreateSession()
	_, err := f.svc.AddItem(context.Background(), view.ID, "RICE", 2)
	require.NoError(t, err)

	_, err = f.svc.SettleDirect(context.Background(), view.ID, models.PaymentTypeCard)
	require.NoError(t, err)

	req := f.ledger.requests[0]
	assert.Equal(t, []models.SettlementItem{{ProductID: 2, Quantity: 1000}}, req.Items)
	assert.True(t, req.MoneyReceived.Equal(decimal.NewFromInt(100)))
}

func TestSettleDirectFailureKeepsCart(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)
	f.ledger.fail(&catalog.SettlementError{StatusCode: 409, Message: "stock changed"})

	_, err := f.svc.SettleDirect(context.Background(), id, models.PaymentTypeEWallet)
	var settleErr *catalog.SettlementError
	require.True(t, errors.As(err, &settleErr))

	view, err := f.svc.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, view.State)
	assert.Equal(t, cart.StatePopulated, view.CartState)
	assert.Len(t, view.Lines, 1)
	assert.Contains(t, view.LastError, "stock changed")

	// The cashier can edit and retry
	_, err = f.svc.EditItem(id, 0, units.Quantity{Value: 2, Scale: units.ScaleDisplay})
	require.NoError(t, err)
	f.ledger.fail(nil)
	_, err = f.svc.SettleDirect(context.Background(), id, models.PaymentTypeEWallet)
	require.NoError(t, err)
}

func TestSettleDirectRejectsNonDirectType(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	_, err := f.svc.SettleDirect(context.Background(), id, models.PaymentTypeCash)
	assert.ErrorIs(t, err, ErrInvalidPaymentType)
}

func TestBeginRedirectPersistsBeforeInitiating(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	f.gateway.onCall = func(req *payment.InitiateRequest) {
		p, err := f.pending.LoadPending(context.Background(), req.ReferenceNumber)
		require.NoError(t, err)
		assert.True(t, p.Total.Equal(decimal.NewFromInt(450)))
	}

	res, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/c/"+res.Reference, res.CheckoutURL)

	req := f.gateway.requests[0]
	assert.Equal(t, "http://pos.local/api/v1/payments/return?status=success&ref="+res.Reference, req.SuccessURL)

	view, _ := f.svc.GetSession(id)
	assert.Equal(t, StateRedirectPending, view.State)

	// The cart is frozen while the customer is away
	_, err = f.svc.AddItem(context.Background(), id, "RICE", 1)
	assert.ErrorIs(t, err, cart.ErrCheckoutInProgress)
}

func TestBeginRedirectProviderFailureCleansUp(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)
	f.gateway.err = errors.New("provider down")

	view, _ := f.svc.GetSession(id)
	_, err := f.svc.BeginRedirect(context.Background(), id)
	require.Error(t, err)

	_, err = f.pending.LoadPending(context.Background(), view.ProvisionalNumber)
	assert.ErrorIs(t, err, models.ErrNotFound)

	view, _ = f.svc.GetSession(id)
	assert.Equal(t, StateIdle, view.State)
	assert.Equal(t, cart.StatePopulated, view.CartState)
}

func TestFinalizeRedirectSettlesOnce(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	first, err := f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, first.Outcome)

	second, err := f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, second.Outcome)

	assert.Equal(t, 1, f.ledger.calls())
	assert.Equal(t, redirect.Reference, f.ledger.requests[0].ReferenceNumber)

	view, _ := f.svc.GetSession(id)
	assert.Equal(t, StateSettled, view.State)
	assert.Empty(t, view.Lines)
	assert.Empty(t, view.PendingReference)
}

func TestFinalizeRedirectConcurrentDeliveries(t *testing.T) {
	f := newCheckoutFixture()
	f.ledger.delay = 20 * time.Millisecond
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	outcomes := make([]string, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
			if err == nil {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.ledger.calls())
	settled := 0
	for _, o := range outcomes {
		if o == OutcomeSettled {
			settled++
		}
	}
	assert.Equal(t, 1, settled)
}

func TestFinalizeRedirectCancelKeepsCart(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	res, err := f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnCancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 0, f.ledger.calls())

	_, err = f.pending.LoadPending(context.Background(), redirect.Reference)
	assert.ErrorIs(t, err, models.ErrNotFound)

	view, _ := f.svc.GetSession(id)
	assert.Equal(t, StateIdle, view.State)
	assert.Len(t, view.Lines, 1)
	require.Len(t, f.publisher.cancelled, 1)
}

func TestFinalizeRedirectLedgerFailureSpendsRecord(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	f.ledger.fail(&catalog.SettlementError{StatusCode: 422, Message: "stock changed"})
	_, err = f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	var settleErr *catalog.SettlementError
	require.True(t, errors.As(err, &settleErr))

	_, err = f.pending.LoadPending(context.Background(), redirect.Reference)
	assert.ErrorIs(t, err, models.ErrNotFound)

	view, _ := f.svc.GetSession(id)
	assert.Equal(t, StateFailed, view.State)
	assert.Len(t, view.Lines, 1)
	assert.Empty(t, view.PendingReference)
	assert.NotEqual(t, redirect.Reference, view.ProvisionalNumber)

	// A replayed success return does not submit again
	f.ledger.fail(nil)
	res, err := f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, 1, f.ledger.calls())
}

func TestReplayAfterRedirectFailureCannotSettleCashSaleAgain(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	f.ledger.fail(errors.New("ledger unavailable"))
	_, err = f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	require.Error(t, err)
	f.ledger.fail(nil)

	// The cashier takes cash for the same cart instead
	_, err = f.svc.SettleCash(context.Background(), id, decimal.NewFromInt(450))
	require.NoError(t, err)

	res, err := f.svc.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, 2, f.ledger.calls())
}

func TestRetriedRedirectUsesFreshReference(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	first, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)
	_, err = f.svc.FinalizeRedirect(context.Background(), first.Reference, payment.ReturnCancel)
	require.NoError(t, err)

	second, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)

	// The stale cancel URL from the first attempt leaves the live record alone
	_, err = f.svc.FinalizeRedirect(context.Background(), first.Reference, payment.ReturnCancel)
	require.NoError(t, err)
	_, err = f.pending.LoadPending(context.Background(), second.Reference)
	require.NoError(t, err)

	res, err := f.svc.FinalizeRedirect(context.Background(), second.Reference, payment.ReturnSuccess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.Equal(t, 1, f.ledger.calls())
	assert.Equal(t, second.Reference, f.ledger.requests[0].ReferenceNumber)
}

func TestFinalizeRedirectAfterRestart(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	// A fresh process shares only the durable store
	restarted := NewCheckoutService(NewSessionRegistry(f.catalog, "7"), f.ledger, f.gateway, f.pending, nil, "http://pos.local")
	res, err := restarted.FinalizeRedirect(context.Background(), redirect.Reference, payment.ReturnSuccess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, 1, f.ledger.calls())
}

func TestCancelCheckoutDropsPendingRecord(t *testing.T) {
	f := newCheckoutFixture()
	id := f.newSaleOf450(t)

	redirect, err := f.svc.BeginRedirect(context.Background(), id)
	require.NoError(t, err)

	view, err := f.svc.CancelCheckout(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, view.State)
	assert.Len(t, view.Lines, 1)

	_, err = f.pending.LoadPending(context.Background(), redirect.Reference)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSelectPaymentRequiresItems(t *testing.T) {
	f := newCheckoutFixture()
	view := f.svc.CreateSession()

	_, err := f.svc.SelectPayment(view.ID, models.PaymentTypeCash)
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	_, err = f.svc.SelectPayment(view.ID, "bitcoin")
	assert.ErrorIs(t, err, ErrInvalidPaymentType)

	_, err = f.svc.GetSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProvisionalNumberFormat(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	number := newProvisionalNumber("42", now)
	assert.Regexp(t, regexp.MustCompile(`^42-20240309140507-[0-9A-F]{6}$`), number)
}
