package api

import (
	"errors"
	"net/http"

	"pos-checkout/internal/cart"
	"pos-checkout/internal/catalog"
	"pos-checkout/internal/importer"
	"pos-checkout/internal/pricing"
	"pos-checkout/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps domain errors to a status and an {"error", "details"} body
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		notFound     *cart.NotFoundError
		insufficient *cart.InsufficientStockError
		settleErr    *catalog.SettlementError
		missingCols  *importer.MissingColumnsError
	)

	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "details": notFound.SKU})

	case errors.Is(err, cart.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "Insufficient stock",
			"details":   insufficient.Error(),
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})

	case errors.As(err, &settleErr):
		status := http.StatusUnprocessableEntity
		if settleErr.StatusCode == http.StatusConflict {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": "Settlement failed", "details": settleErr.Message})

	case errors.As(err, &missingCols):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Missing required columns", "details": missingCols.Columns})

	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrFractionalQuantity),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, pricing.ErrInvalidDiscount),
		errors.Is(err, service.ErrInsufficientPayment),
		errors.Is(err, service.ErrInvalidPaymentType),
		errors.Is(err, service.ErrNothingToPay),
		errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, importer.ErrUnreadableFile),
		errors.Is(err, importer.ErrUnsupportedFile):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	default:
		h.logger.Error("Upstream request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream service unavailable", "details": err.Error()})
	}
}
