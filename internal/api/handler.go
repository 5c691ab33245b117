package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pos-checkout/internal/service"
	"pos-checkout/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	checkout     *service.CheckoutService
	imports      *service.ImportService
	valuation    *service.ValuationService
	dependencies map[string]Pinger
	errorPreview int
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	imports *service.ImportService,
	valuation *service.ValuationService,
	errorPreview int,
) *Handler {
	return &Handler{
		checkout:     checkout,
		imports:      imports,
		valuation:    valuation,
		dependencies: make(map[string]Pinger),
		errorPreview: errorPreview,
		logger:       util.GetLogger(),
	}
}

// AddDependency registers a dependency for the readiness check
func (h *Handler) AddDependency(name string, p Pinger) {
	h.dependencies[name] = p
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", h.createSession)
		v1.GET("/sessions/:id", h.getSession)
		v1.DELETE("/sessions/:id", h.closeSession)

		v1.POST("/sessions/:id/items", h.addItem)
		v1.PATCH("/sessions/:id/items/:index", h.editItem)
		v1.DELETE("/sessions/:id/items/:index", h.removeItem)
		v1.DELETE("/sessions/:id/items", h.clearCart)

		v1.PUT("/sessions/:id/discount", h.applyDiscount)
		v1.DELETE("/sessions/:id/discount", h.clearDiscount)

		v1.POST("/sessions/:id/payment", h.selectPayment)
		v1.POST("/sessions/:id/checkout/cash", h.settleCash)
		v1.POST("/sessions/:id/checkout/redirect", h.beginRedirect)
		v1.POST("/sessions/:id/checkout/direct", h.settleDirect)
		v1.POST("/sessions/:id/checkout/cancel", h.cancelCheckout)

		v1.GET("/payments/return", h.paymentReturn)

		v1.POST("/inventory/import", h.importInventory)
		v1.GET("/inventory/valuation", h.inventoryValuation)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := gin.H{}
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failing,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
