package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"pos-checkout/internal/models"
	"pos-checkout/internal/units"

	"github.com/shopspring/decimal"
)

// Catalog resolves scanned SKUs
type Catalog interface {
	LookupBySKU(ctx context.Context, sku string) (*models.Product, error)
}

// State of a cart
type State string

// Cart states. Settling or cancelling resets the cart to StateEmpty.
const (
	StateEmpty       State = "empty"
	StatePopulated   State = "populated"
	StateCheckingOut State = "checking_out"
)

// LineItem is one product in the cart. Quantity is in display units.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  float64         `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`

	product models.Product
}

// LineTotal is quantity × unit price
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromFloat(l.Quantity)).Round(2)
}

// BaseQuantity is the line quantity in the unit stock is recorded in
func (l LineItem) BaseQuantity() float64 {
	p := l.product
	return units.ToBase(units.Quantity{Value: l.Quantity, Scale: units.ScaleDisplay}, p.ProductType, p.QuantityPerUnit, p.BaseUnit)
}

// Available is the last known stock for the line, in display units
func (l LineItem) Available() float64 {
	return availableOf(l.product)
}

// ProductType of the line's product
func (l LineItem) ProductType() models.ProductType {
	return l.product.ProductType
}

// Cart holds ordered, unique line items keyed by product id.
// It is not safe for concurrent use; the owning session serializes access.
type Cart struct {
	catalog Catalog
	lines   []*LineItem
	state   State
}

// New creates an empty cart
func New(catalog Catalog) *Cart {
	return &Cart{catalog: catalog, state: StateEmpty}
}

// State returns the current cart state
func (c *Cart) State() State {
	return c.state
}

// AddBySKU resolves sku and adds qty display units, merging with an existing
// line. Stock is checked against the fetched snapshot; on any error the cart
// is left unchanged.
func (c *Cart) AddBySKU(ctx context.Context, sku string, qty float64) (*LineItem, error) {
	if c.state == StateCheckingOut {
		return nil, ErrCheckoutInProgress
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	sku = strings.TrimSpace(sku)
	product, err := c.catalog.LookupBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &NotFoundError{SKU: sku}
		}
		return nil, fmt.Errorf("failed to look up %s: %w", sku, err)
	}

	if !allowedQuantity(product.ProductType, qty) {
		return nil, ErrFractionalQuantity
	}

	available := availableOf(*product)
	if available <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrOutOfStock, sku)
	}

	requested := qty
	existing := c.find(product.ID)
	if existing != nil {
		requested = existing.Quantity + qty
	}
	if requested > available {
		return nil, &InsufficientStockError{Available: available, Requested: requested}
	}

	if existing != nil {
		existing.Quantity = requested
		existing.refresh(*product)
		return existing.copy(), nil
	}

	line := &LineItem{Quantity: requested}
	line.refresh(*product)
	c.lines = append(c.lines, line)
	c.state = StatePopulated
	return line.copy(), nil
}

// EditQuantity sets the quantity of the line at index. The scale of q is
// explicit; the result is clamped to the product type's minimum.
func (c *Cart) EditQuantity(index int, q units.Quantity) (*LineItem, error) {
	if c.state == StateCheckingOut {
		return nil, ErrCheckoutInProgress
	}
	if index < 0 || index >= len(c.lines) {
		return nil, ErrLineNotFound
	}
	if q.Value <= 0 {
		return nil, ErrInvalidQuantity
	}

	line := c.lines[index]
	p := line.product
	qty := units.ToDisplayScale(q, p.ProductType, p.QuantityPerUnit, p.BaseUnit)
	if floor := units.MinQuantity(p.ProductType); qty < floor {
		qty = floor
	}
	if !allowedQuantity(p.ProductType, qty) {
		return nil, ErrFractionalQuantity
	}

	if available := availableOf(p); qty > available {
		return nil, &InsufficientStockError{Available: available, Requested: qty}
	}

	line.Quantity = qty
	return line.copy(), nil
}

// Remove deletes the line at index
func (c *Cart) Remove(index int) error {
	if c.state == StateCheckingOut {
		return ErrCheckoutInProgress
	}
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}

	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	if len(c.lines) == 0 {
		c.state = StateEmpty
	}
	return nil
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, *l)
	}
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// Subtotal is the sum of all line totals
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range c.lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	return subtotal
}

// SettlementItems returns ledger items with base-unit quantities
func (c *Cart) SettlementItems() []models.SettlementItem {
	items := make([]models.SettlementItem, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, models.SettlementItem{
			ProductID: l.ProductID,
			Quantity:  l.BaseQuantity(),
		})
	}
	return items
}

// SKUs returns the SKUs in the cart
func (c *Cart) SKUs() []string {
	skus := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		skus = append(skus, l.SKU)
	}
	return skus
}

// BeginCheckout freezes the cart for settlement
func (c *Cart) BeginCheckout() error {
	switch c.state {
	case StateEmpty:
		return ErrEmptyCart
	case StateCheckingOut:
		return ErrCheckoutInProgress
	}
	c.state = StateCheckingOut
	return nil
}

// AbortCheckout unfreezes the cart, keeping its lines for retry
func (c *Cart) AbortCheckout() {
	if c.state != StateCheckingOut {
		return
	}
	if len(c.lines) == 0 {
		c.state = StateEmpty
		return
	}
	c.state = StatePopulated
}

// MarkSettled resets the cart after a successful settlement
func (c *Cart) MarkSettled() {
	c.reset()
}

// Cancel discards every line
func (c *Cart) Cancel() {
	c.reset()
}

func (c *Cart) reset() {
	c.lines = nil
	c.state = StateEmpty
}

func (c *Cart) find(productID int64) *LineItem {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l
		}
	}
	return nil
}

func (l *LineItem) refresh(p models.Product) {
	l.ProductID = p.ID
	l.SKU = p.SKU
	l.Name = p.Name
	l.UnitPrice = p.SellingPrice
	l.Unit = units.DisplayUnit(p.ProductType, p.QuantityPerUnit, p.BaseUnit)
	l.product = p
}

func (l *LineItem) copy() *LineItem {
	cp := *l
	return &cp
}

func availableOf(p models.Product) float64 {
	return units.DisplayRatio(p.QuantityInStock, p.ProductType, p.QuantityPerUnit, p.BaseUnit)
}

// allowedQuantity reports whether qty is valid for the product type. Pieces are
// sold in whole numbers only.
func allowedQuantity(productType models.ProductType, qty float64) bool {
	if productType == models.ProductTypeWeight || productType == models.ProductTypeVolume {
		return true
	}
	return qty == math.Trunc(qty)
}
