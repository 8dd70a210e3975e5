// Package metrics provides Prometheus metrics for mediasource operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasource_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Backend operation metrics
	BackendOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_backend_ops_total",
			Help: "Total number of object store operations",
		},
		[]string{"backend_type", "operation"},
	)

	BackendOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasource_backend_op_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend_type", "operation"},
	)

	BackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_backend_errors_total",
			Help: "Total number of failed object store operations",
		},
		[]string{"backend_type", "operation", "error_kind"},
	)

	// Source-level operation metrics
	SourceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_source_operations_total",
			Help: "Total number of media source operations",
		},
		[]string{"operation", "status"}, // status: "success", "failure"
	)

	// Transfer metrics
	TransferObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_transfer_objects_total",
			Help: "Total number of objects handled by tree transfers",
		},
		[]string{"method", "result"}, // result: "transferred", "deleted", "skipped", "failed"
	)

	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasource_transfer_duration_seconds",
			Help:    "Tree transfer duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"method", "kind"},
	)

	ActiveTransfers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediasource_active_transfers",
			Help: "Number of tree transfers currently running",
		},
	)

	// Lock manager metrics
	LockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_lock_operations_total",
			Help: "Total number of lock operations",
		},
		[]string{"operation", "status"}, // operation: "acquire", "release"; status: "success", "held", "failure"
	)

	// Binary probe cache metrics
	ProbeCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_probe_cache_lookups_total",
			Help: "Total number of binary probe cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasource_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
)
