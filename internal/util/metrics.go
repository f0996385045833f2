package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders persisted, by shared payment method",
	}, []string{"payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrderNumberCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_number_collisions_total",
		Help: "Total number of order number collisions retried",
	})

	CartClearFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_clear_failures_total",
		Help: "Orders persisted whose cart could not be cleared afterwards",
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op", "result"})

	GuestLinesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_guest_cart_lines_skipped_total",
		Help: "Guest cart lines dropped during merge",
	})

	StockConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_conflicts_total",
		Help: "Total number of stock validation rejections",
	}, []string{"stage"})

	StockDecrementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_stock_decrement_latency_seconds",
		Help:    "Latency of conditional stock decrements for an order",
		Buckets: prometheus.DefBuckets,
	})

	StoreReady = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_store_ready",
		Help: "Readiness of backing stores (1 ready, 0 not ready)",
	}, []string{"store"})

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
