package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeadmin_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storeadmin_login_attempts_total",
			Help: "Total number of login attempts",
		},
	)

	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storeadmin_register_attempts_total",
			Help: "Total number of registration attempts",
		},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_auth_errors_total",
			Help: "Total number of authentication errors by type",
		},
		[]string{"error_type"},
	)

	// Store (tenant) metrics
	StoreOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_store_operations_total",
			Help: "Total number of store operations by type",
		},
		[]string{"operation"},
	)

	StoreErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_store_errors_total",
			Help: "Total number of store errors by type",
		},
		[]string{"error_type"},
	)

	ResolveDeniedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storeadmin_store_resolve_denied_total",
			Help: "Total number of store resolutions denied (missing or unauthorized)",
		},
	)

	// Scoped data metrics
	ProductOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_product_operations_total",
			Help: "Total number of product operations by type",
		},
		[]string{"operation"},
	)

	OrderOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_order_operations_total",
			Help: "Total number of order operations by type",
		},
		[]string{"operation"},
	)

	// PolicyViolationCounter counts storage-level scoping check failures.
	// Any increment here means the accessor and the policy layer disagree.
	PolicyViolationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeadmin_policy_violations_total",
			Help: "Total number of store scoping policy violations by table",
		},
		[]string{"table"},
	)

	// Database operation metrics
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeadmin_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(StoreOperationCounter)
	prometheus.MustRegister(StoreErrorCounter)
	prometheus.MustRegister(ResolveDeniedCounter)
	prometheus.MustRegister(ProductOperationCounter)
	prometheus.MustRegister(OrderOperationCounter)
	prometheus.MustRegister(PolicyViolationCounter)
	prometheus.MustRegister(DBOperationDuration)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"error_type": errorType}).Inc()
}

// RecordStoreOperation increments the store operation counter
func RecordStoreOperation(operation string) {
	StoreOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordStoreError increments the store error counter for the given type
func RecordStoreError(errorType string) {
	StoreErrorCounter.With(prometheus.Labels{"error_type": errorType}).Inc()
}

// RecordProductOperation increments the product operation counter
func RecordProductOperation(operation string) {
	ProductOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordOrderOperation increments the order operation counter
func RecordOrderOperation(operation string) {
	OrderOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordPolicyViolation increments the policy violation counter for a table
func RecordPolicyViolation(table string) {
	PolicyViolationCounter.With(prometheus.Labels{"table": table}).Inc()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}
