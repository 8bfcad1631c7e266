// Package telemetry provides application-level observability for the package gallery:
// slog setup, Prometheus metrics and the telemetry service that records account deletion
// outcomes.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and served on the
// side-channel HTTP server started by main.go:
//
//	GET http://<host>:<GALLERY_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the gin router.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (the route template such as /api/v1/admin/accounts/:username)
// rather than the raw URL so user-supplied path segments do not create unbounded series.
// Account deletion metrics are labelled by account kind and outcome only, never by username.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/package-gallery/gallery/internal/safego"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Account deletion metrics.
//
// AccountDeletionsTotal is a CounterVec with labels {kind, outcome}: kind is "user" or
// "organization", outcome is "success" or "failure". Attempts short-circuited because the
// account was already deleted are not counted.
//
// Example PromQL queries:
//   - Failure ratio:  sum(rate(account_deletions_total{outcome="failure"}[1h])) / sum(rate(account_deletions_total[1h]))
//
// AccountDeletionDuration covers the whole attempt including the transaction commit.
// Organizations with many members and packages sit in the upper buckets.
var (
	AccountDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_deletions_total",
			Help: "Total number of account deletion attempts, by account kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	AccountDeletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "account_deletion_duration_seconds",
			Help:    "Duration of a single account deletion attempt.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// AccountDeletionRequestsProcessedTotal counts self-service deletion requests handled by the
// background processor, labelled {outcome}: "deleted", "blocked" or "skipped".
// A growing "blocked" series means requests need manual attention.
var AccountDeletionRequestsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "account_deletion_requests_processed_total",
		Help: "Total number of self-service account deletion requests processed, by outcome.",
	},
	[]string{"outcome"},
)

// DBOpenConnections tracks the number of open connections held by the pool.
// It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples the pool statistics every 30 seconds into DBOpenConnections.
// The collector exits when the database becomes unreachable, which happens on shutdown once
// the handle is closed.
func StartDBStatsCollector(conn *sqlx.DB) {
	safego.Go("db-stats-collector", func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(conn.Stats().OpenConnections))
		}
	})
}
