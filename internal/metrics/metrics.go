// Package metrics defines Prometheus metrics for opsapi.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsapi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsapi_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsapi_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	// ListQueries counts gateway list queries by model and finder strategy.
	ListQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsapi_gateway_list_queries_total",
			Help: "Gateway list queries by model and plan kind",
		},
		[]string{"model", "kind"},
	)

	// Mutations counts committed gateway mutations.
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsapi_gateway_mutations_total",
			Help: "Gateway mutations by model and action",
		},
		[]string{"model", "action"},
	)

	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsapi_audit_writes_total",
			Help: "Audit log rows written by model and action",
		},
		[]string{"model", "action"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsapi_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	SlowQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opsapi_db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
	)

	DeletedPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsapi_deleted_records_purged_total",
			Help: "Soft-deleted records removed after retention, by model",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		ListQueries, Mutations, AuditWrites,
		QueryDuration, SlowQueries, DeletedPurged,
	)
}
