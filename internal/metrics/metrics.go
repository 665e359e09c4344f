// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locker_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ItemOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_items_operations_total",
			Help: "Item API operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)

	ReceiptUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_receipt_uploads_total",
			Help: "Receipt uploads, by result.",
		},
		[]string{"result"},
	)

	// OrphanedReceiptsTotal counts files left behind by a failed record write.
	OrphanedReceiptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "locker_orphaned_receipts_total",
			Help: "Receipt files written whose item record could not be saved.",
		},
	)

	// OrphanedReceipts is the orphan count found by the latest scan.
	OrphanedReceipts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locker_orphaned_receipts",
			Help: "Receipt files not referenced by any item at the last scan.",
		},
	)
)
