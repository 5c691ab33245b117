package api

import (
	"net/http"
	"strconv"

	"pos-checkout/internal/payment"
	"pos-checkout/internal/pricing"
	"pos-checkout/internal/units"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type addItemRequest struct {
	SKU      string  `json:"sku" binding:"required"`
	Quantity float64 `json:"quantity"`
}

type editItemRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
	Scale    string  `json:"scale"`
}

type discountRequest struct {
	Kind  pricing.DiscountKind `json:"kind" binding:"required"`
	Value decimal.Decimal      `json:"value"`
}

type paymentRequest struct {
	PaymentType string `json:"payment_type" binding:"required"`
}

type cashRequest struct {
	MoneyReceived decimal.Decimal `json:"money_received"`
}

func (h *Handler) createSession(c *gin.Context) {
	c.JSON(http.StatusCreated, h.checkout.CreateSession())
}

func (h *Handler) getSession(c *gin.Context) {
	view, err := h.checkout.GetSession(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) closeSession(c *gin.Context) {
	if err := h.checkout.CloseSession(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// addItem handles a scan or typed SKU
func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.checkout.AddItem(c.Request.Context(), c.Param("id"), req.SKU, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) editItem(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req editItemRequest
	if !bindJSON(c, &req) {
		return
	}

	scale := units.ScaleDisplay
	switch req.Scale {
	case "", "display":
	case "base":
		scale = units.ScaleBase
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scale must be display or base"})
		return
	}

	view, err := h.checkout.EditItem(c.Param("id"), index, units.Quantity{Value: req.Quantity, Scale: scale})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) removeItem(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	view, err := h.checkout.RemoveItem(c.Param("id"), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	view, err := h.checkout.ClearCart(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) applyDiscount(c *gin.Context) {
	var req discountRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.checkout.ApplyDiscount(c.Param("id"), req.Kind, req.Value)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearDiscount(c *gin.Context) {
	view, err := h.checkout.ClearDiscount(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) selectPayment(c *gin.Context) {
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.checkout.SelectPayment(c.Param("id"), req.PaymentType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) settleCash(c *gin.Context) {
	var req cashRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.checkout.SettleCash(c.Request.Context(), c.Param("id"), req.MoneyReceived)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) beginRedirect(c *gin.Context) {
	res, err := h.checkout.BeginRedirect(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) settleDirect(c *gin.Context) {
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.checkout.SettleDirect(c.Request.Context(), c.Param("id"), req.PaymentType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) cancelCheckout(c *gin.Context) {
	view, err := h.checkout.CancelCheckout(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// paymentReturn is where the provider sends the customer back
func (h *Handler) paymentReturn(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ref is required"})
		return
	}
	status, ok := payment.ParseReturnStatus(c.Query("status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": c.Query("status")})
		return
	}

	res, err := h.checkout.FinalizeRedirect(c.Request.Context(), ref, status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid line index"})
		return 0, false
	}
	return index, true
}
