package cart

import (
	"errors"
	"fmt"
	"strconv"

	"pos-checkout/internal/models"
)

var (
	ErrOutOfStock         = errors.New("product is out of stock")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrFractionalQuantity = errors.New("quantity must be a whole number for products sold per piece")
	ErrLineNotFound       = errors.New("cart line not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// NotFoundError is returned when a scanned SKU is unknown to the catalog
type NotFoundError struct {
	SKU string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.SKU)
}

func (e *NotFoundError) Unwrap() error {
	return models.ErrNotFound
}

// InsufficientStockError carries the last known stock and the requested
// quantity, both in display units.
type InsufficientStockError struct {
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Available: %s, requested: %s", formatQty(e.Available), formatQty(e.Requested))
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
