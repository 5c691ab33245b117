package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pos-checkout/internal/cart"
	"pos-checkout/internal/models"
	"pos-checkout/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrInsufficientPayment = errors.New("money received is less than the total")
	ErrInvalidPaymentType  = errors.New("invalid payment type")
	ErrNothingToPay        = errors.New("total must be greater than zero")
)

// CheckoutState of a session
type CheckoutState string

// Checkout states. Settled and Failed are terminal for one sale; the next
// cart or payment action returns the session to Idle.
const (
	StateIdle            CheckoutState = "idle"
	StatePaymentSelected CheckoutState = "payment_selected"
	StateCashConfirm     CheckoutState = "cash_confirm"
	StateRedirectPending CheckoutState = "redirect_pending"
	StateDirectSettle    CheckoutState = "direct_settle"
	StateSettled         CheckoutState = "settled"
	StateFailed          CheckoutState = "failed"
)

func (s CheckoutState) inFlight() bool {
	switch s {
	case StateCashConfirm, StateRedirectPending, StateDirectSettle:
		return true
	}
	return false
}

// Session is one cashier's sale in progress. All access goes through its mutex.
type Session struct {
	ID string

	mu                sync.Mutex
	cart              *cart.Cart
	discount          *pricing.Discount
	state             CheckoutState
	paymentType       string
	provisionalNumber string
	pendingReference  string
	lastTransaction   *models.Transaction
	lastChange        *decimal.Decimal
	lastError         string
	businessID        string
	createdAt         time.Time
	updatedAt         time.Time
}

// SessionView is a read-only snapshot of a session
type SessionView struct {
	ID                string              `json:"id"`
	State             CheckoutState       `json:"state"`
	CartState         cart.State          `json:"cart_state"`
	PaymentType       string              `json:"payment_type,omitempty"`
	ProvisionalNumber string              `json:"provisional_number"`
	PendingReference  string              `json:"pending_reference,omitempty"`
	Lines             []cart.LineItem     `json:"lines"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Discount          *pricing.Discount   `json:"discount,omitempty"`
	Total             decimal.Decimal     `json:"total"`
	LastTransaction   *models.Transaction `json:"last_transaction,omitempty"`
	LastChange        *decimal.Decimal    `json:"last_change,omitempty"`
	LastError         string              `json:"last_error,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func newSession(catalog cart.Catalog, businessID string) *Session {
	now := time.Now()
	return &Session{
		ID:                uuid.New().String(),
		cart:              cart.New(catalog),
		state:             StateIdle,
		provisionalNumber: newProvisionalNumber(businessID, now),
		businessID:        businessID,
		createdAt:         now,
		updatedAt:         now,
	}
}

// total must be called with the lock held
func (s *Session) total() decimal.Decimal {
	return pricing.ComputeTotal(s.cart.Subtotal(), s.discount)
}

// view must be called with the lock held
func (s *Session) view() *SessionView {
	return &SessionView{
		ID:                s.ID,
		State:             s.state,
		CartState:         s.cart.State(),
		PaymentType:       s.paymentType,
		ProvisionalNumber: s.provisionalNumber,
		PendingReference:  s.pendingReference,
		Lines:             s.cart.Lines(),
		Subtotal:          s.cart.Subtotal(),
		Discount:          s.discount,
		Total:             s.total(),
		LastTransaction:   s.lastTransaction,
		LastChange:        s.lastChange,
		LastError:         s.lastError,
		UpdatedAt:         s.updatedAt,
	}
}

// touch clears the outcome of the previous sale once the cashier moves on
func (s *Session) touch() {
	if s.state == StateSettled || s.state == StateFailed {
		s.state = StateIdle
	}
	s.updatedAt = time.Now()
}

// selectPayment must be called with the lock held
func (s *Session) selectPayment(paymentType string) error {
	if s.state.inFlight() {
		return cart.ErrCheckoutInProgress
	}
	if s.cart.Len() == 0 {
		return cart.ErrEmptyCart
	}
	s.touch()
	s.paymentType = paymentType
	s.state = StatePaymentSelected
	return nil
}

// settled records a successful settlement and starts a new sale
func (s *Session) settled(tx *models.Transaction, change decimal.Decimal) {
	s.cart.MarkSettled()
	s.discount = nil
	s.pendingReference = ""
	s.lastTransaction = tx
	s.lastChange = &change
	s.lastError = ""
	s.state = StateSettled
	s.provisionalNumber = newProvisionalNumber(s.businessID, time.Now())
	s.updatedAt = time.Now()
}

// failed records a failed settlement; the cart is kept for retry
func (s *Session) failed(err error) {
	s.cart.AbortCheckout()
	s.lastError = err.Error()
	s.state = StateFailed
	s.updatedAt = time.Now()
}

// redirectFailed records a redirect whose settlement was rejected. Its
// reference is spent, so a retry starts a new redirect under a new number.
func (s *Session) redirectFailed(err error) {
	s.failed(err)
	s.retireReference()
}

// abandoned returns an interrupted checkout to Idle with the cart intact
func (s *Session) abandoned() {
	s.cart.AbortCheckout()
	s.state = StateIdle
	s.retireReference()
	s.updatedAt = time.Now()
}

// retireReference drops the pending reference and issues a new provisional
// number, so stale provider returns can never match the next attempt.
func (s *Session) retireReference() {
	s.pendingReference = ""
	s.provisionalNumber = newProvisionalNumber(s.businessID, time.Now())
}

// newProvisionalNumber is a display-only number in the form
// {businessID}-{yyyyMMddHHmmss}-{random}. The ledger assigns the real one.
func newProvisionalNumber(businessID string, now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", businessID, now.Format("20060102150405"), random)
}

// SessionRegistry keeps the terminal's sessions in memory
type SessionRegistry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	catalog    cart.Catalog
	businessID string
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(catalog cart.Catalog, businessID string) *SessionRegistry {
	return &SessionRegistry{
		sessions:   make(map[string]*Session),
		catalog:    catalog,
		businessID: businessID,
	}
}

// Create opens a new session
func (r *SessionRegistry) Create() *Session {
	s := newSession(r.catalog, r.businessID)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns a session by id
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes a session
func (r *SessionRegistry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of open sessions
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
