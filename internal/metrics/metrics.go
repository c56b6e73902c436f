// internal/metrics/metrics.go

// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	OrdersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders committed, by initial status",
	}, []string{"status"})

	OrdersFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Order creations that did not commit, by error kind",
	}, []string{"kind"})

	InventoryAdjustments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_inventory_adjustments_total",
		Help: "Committed ledger entries, by reason",
	}, []string{"reason"})

	InsufficientStock = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_insufficient_stock_total",
		Help: "Adjustments rejected because stock would go negative",
	})

	RestockRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_restock_requests_total",
		Help: "Purchase orders handed to suppliers, by outcome",
	}, []string{"outcome"})

	RestockQueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_restock_queue_dropped_total",
		Help: "Restock evaluations dropped because the queue was full",
	})

	BatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_bulk_batch_duration_seconds",
		Help:    "Wall time of bulk order batches",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "HTTP requests, by route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Restock outcomes
const (
	OutcomeSent       = "sent"
	OutcomeFailed     = "failed"
	OutcomeSuppressed = "suppressed"
)

func init() {
	prometheus.MustRegister(
		OrdersCreated,
		OrdersFailed,
		InventoryAdjustments,
		InsufficientStock,
		RestockRequests,
		RestockQueueDropped,
		BatchDuration,
		HTTPRequests,
		HTTPDuration,
		collectors.NewBuildInfoCollector(),
	)
}
