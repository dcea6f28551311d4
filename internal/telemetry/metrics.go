// Package telemetry provides application-level observability for the identity platform.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<IAM_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Login attempt counters by outcome
//   - Refresh token rotation and reuse-detection counters
//   - Authorization decision counters by outcome
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /v1/admin/principals/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
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

	// HTTPRequestsInFlight counts requests currently inside the router.
	// A sustained climb with flat throughput means handlers are stuck,
	// usually on the database.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)
)

// Session lifecycle metrics.
//
// LoginAttemptsTotal is a CounterVec with label {outcome}, one of "success",
// "bad_credentials", or "error".  An unknown email and a wrong password both
// count as "bad_credentials" so the metric leaks nothing the API does not.
//
// TokenRotationsTotal counts successful refresh-token rotations.
//
// TokenReuseDetectedTotal counts refresh attempts that presented an already
// revoked token.  A nonzero rate is either a replayed stolen token or a badly
// behaved client retrying; both deserve an alert.
//
// Example PromQL queries:
//   - Login failure ratio:  sum(rate(login_attempts_total{outcome="bad_credentials"}[5m])) / sum(rate(login_attempts_total[5m]))
//   - Reuse alert:          increase(token_reuse_detected_total[10m]) > 0
var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	TokenRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_rotations_total",
			Help: "Total number of successful refresh token rotations.",
		},
	)

	TokenReuseDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_reuse_detected_total",
			Help: "Total number of refresh attempts that presented an already revoked token.",
		},
	)
)

// Authorization metrics.
//
// AuthzDecisionsTotal is a CounterVec with label {outcome}: "allow", "deny",
// or "error".  Resolver latency rides on the HTTP histogram since decisions
// happen inline with requests.
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Total number of authorization decisions, by outcome.",
	},
	[]string{"outcome"},
)

// PasswordResetsTotal is a CounterVec with label {phase}: "requested" or
// "completed".  A large requested/completed gap suggests undelivered mail.
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "password_resets_total",
		Help: "Total number of password reset requests and completions, by phase.",
	},
	[]string{"phase"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
