// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts engine calls by operation and outcome. Outcome is
	// "success", "cached", "in_progress", "error" for infrastructure faults,
	// or the domain error code of a rejection.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by type and outcome",
	}, []string{"operation", "outcome"})

	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Ledger operation latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})

	// Deliveries counts webhook delivery attempts by result: "delivered",
	// "retry", "failed", "inactive" or "breaker_open".
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_webhook_deliveries_total",
		Help: "Webhook delivery attempts by result",
	}, []string{"result"})

	DeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_webhook_delivery_duration_seconds",
		Help:    "Webhook POST latency",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})
)
