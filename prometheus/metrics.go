package prometheus

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counter
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "site_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counter
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "site_register_total",
			Help: "Total number of user registrations",
		},
	)

	// Site operation counter
	SiteOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_operations_total",
			Help: "Total number of site operations",
		},
		[]string{"operation"}, // "create", "access", "list", "switch", "add_user", "remove_user", "set_default"
	)

	// Site resolution outcome counter
	SiteResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_resolution_total",
			Help: "Total number of site resolutions by outcome",
		},
		[]string{"outcome"}, // "resolved", "not_found"
	)

	// Error counter
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"type"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active sessions
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "site_active_sessions",
			Help: "Number of sessions currently considered active",
		},
	)
)

// InitMetrics registers all metrics with the default registry
func InitMetrics() {
	prometheus.MustRegister(
		LoginCounter,
		RegisterCounter,
		SiteOperationCounter,
		SiteResolutionCounter,
		AuthErrorCounter,
		HTTPRequestCounter,
		RequestDuration,
		DBOperationDuration,
		ActiveSessions,
	)
}

// RecordSiteOperation increments the site operation counter
func RecordSiteOperation(operation string) {
	SiteOperationCounter.WithLabelValues(operation).Inc()
}

// RecordSiteResolution increments the resolution outcome counter
func RecordSiteResolution(outcome string) {
	SiteResolutionCounter.WithLabelValues(outcome).Inc()
}

// RecordAuthError increments the auth error counter
func RecordAuthError(errorType string) {
	AuthErrorCounter.WithLabelValues(errorType).Inc()
}

// TrackDBOperation returns a function that records the duration of a
// database operation when invoked, intended for use with defer:
//
//	defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// IncreaseActiveSessions increments the active sessions gauge
func IncreaseActiveSessions() {
	ActiveSessions.Inc()
}

// DecreaseActiveSessions decrements the active sessions gauge
func DecreaseActiveSessions() {
	ActiveSessions.Dec()
}

// MetricsMiddleware records request counts and durations per endpoint
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			endpoint := c.Path()

			HTTPRequestCounter.WithLabelValues(endpoint, method, status).Inc()
			RequestDuration.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler exposes the metrics endpoint
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
