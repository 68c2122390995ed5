// Package metrics defines Prometheus metrics for dashport.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashport_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashport_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashport_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashport_imports_total",
			Help: "Bundle imports by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	ImportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashport_import_duration_seconds",
			Help:    "Bundle import duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"policy"},
	)

	EntitiesImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashport_entities_imported_total",
			Help: "Entities persisted by kind and store action",
		},
		[]string{"kind", "action"},
	)

	References = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashport_references_total",
			Help: "Dashboard references rewritten by field and outcome",
		},
		[]string{"field", "outcome"},
	)

	AssociationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dashport_associations_created_total",
			Help: "Dashboard to chart links inserted",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		ImportsTotal, ImportDuration,
		EntitiesImported, References, AssociationsCreated,
	)
}
