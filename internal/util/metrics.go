package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_cart_items_added_total",
		Help: "Total number of successful add-to-cart operations",
	})

	CartRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cart_rejections_total",
		Help: "Total number of rejected cart operations",
	}, []string{"reason"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_settlements_total",
		Help: "Total number of settlements accepted by the ledger",
	}, []string{"payment_type"})

	SettlementsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_settlements_failed_total",
		Help: "Total number of settlements that failed",
	}, []string{"payment_type", "reason"})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_settlement_latency_seconds",
		Help:    "Latency of ledger settlement submissions",
		Buckets: prometheus.DefBuckets,
	})

	RedirectsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_payment_redirects_started_total",
		Help: "Total number of hand-offs to the redirect payment provider",
	})

	RedirectReturnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payment_redirect_returns_total",
		Help: "Total number of returns from the redirect payment provider",
	}, []string{"status"})

	DuplicateFinalizeSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_duplicate_finalize_suppressed_total",
		Help: "Total number of redirect finalize callbacks ignored by the idempotency guard",
	})

	ImportRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_import_rows_total",
		Help: "Total number of imported inventory rows by outcome",
	}, []string{"outcome"})

	InventoryValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_inventory_value",
		Help: "Inventory value at cost from the last valuation",
	})

	InventoryImplausibleValuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_inventory_implausible_values_total",
		Help: "Total number of product values flagged as implausible",
	})

	LowStockAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	}, []string{"status"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_upstream_request_duration_seconds",
		Help:    "Latency of calls to the catalog, ledger and payment provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "operation", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
