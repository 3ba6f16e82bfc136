// Package observability provides Prometheus metrics and optional tracing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"holder-roles/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Chain metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	RPCRetries     *prometheus.CounterVec
	RPCInFlight    prometheus.Gauge
	MetadataFetch  *prometheus.CounterVec

	// Directory metrics
	DirectoryCalls *prometheus.CounterVec

	// Sweep metrics
	SweepsTotal    *prometheus.CounterVec
	SweepDuration  prometheus.Histogram
	HolderOutcomes *prometheus.CounterVec
	BatchesTotal   *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	DonationsTotal prometheus.Counter
	Enrollments    *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRevalidation prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "holder_roles"
	}

	return &Metrics{
		// Chain metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC attempts",
		}, []string{"method"}),
		RPCRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_retries_total",
			Help:      "Total number of Solana RPC retries scheduled",
		}, []string{"method"}),
		RPCInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_in_flight",
			Help:      "Number of RPC permits currently held",
		}),
		MetadataFetch: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetches_total",
			Help:      "Total number of NFT metadata fetches by result",
		}, []string{"result"}),

		// Directory metrics
		DirectoryCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "calls_total",
			Help:      "Total number of role directory calls by operation and status",
		}, []string{"operation", "status"}),

		// Sweep metrics
		SweepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "sweeps_total",
			Help:      "Total number of project sweeps by status",
		}, []string{"status"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "sweep_duration_seconds",
			Help:      "Project sweep duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		HolderOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "holder_outcomes_total",
			Help:      "Total number of holder outcomes by kind",
		}, []string{"outcome"}),
		BatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "batches_total",
			Help:      "Total number of revalidation batches by status",
		}, []string{"status"}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "batch_duration_seconds",
			Help:      "Revalidation batch duration in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600},
		}),
		DonationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "donations_total",
			Help:      "Total number of donation NFTs observed across sweeps",
		}),
		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "enrollments_total",
			Help:      "Total number of holder enrollments by status",
		}, []string{"status"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRevalidation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_revalidation_timestamp",
			Help:      "Unix timestamp of last successful revalidation batch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCCall records one RPC attempt.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordRPCRetry increments the retry counter.
func RecordRPCRetry(method string) {
	DefaultMetrics.RPCRetries.WithLabelValues(method).Inc()
}

// UpdateRPCInFlight sets the RPC in-flight gauge.
func UpdateRPCInFlight(n int) {
	DefaultMetrics.RPCInFlight.Set(float64(n))
}

// RecordMetadataFetch records a metadata fetch result ("ok" or "default").
func RecordMetadataFetch(result string) {
	DefaultMetrics.MetadataFetch.WithLabelValues(result).Inc()
}

// RecordDirectoryCall records a role directory call.
func RecordDirectoryCall(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.DirectoryCalls.WithLabelValues(operation, status).Inc()
}

// RecordSweep records a finished project sweep and its holder outcomes.
func RecordSweep(status string, durationSeconds float64, m domain.Metrics) {
	DefaultMetrics.SweepsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SweepDuration.Observe(durationSeconds)
	DefaultMetrics.HolderOutcomes.WithLabelValues("added").Add(float64(m.Added))
	DefaultMetrics.HolderOutcomes.WithLabelValues("removed").Add(float64(m.Removed))
	DefaultMetrics.HolderOutcomes.WithLabelValues("skipped").Add(float64(m.Skipped))
	DefaultMetrics.HolderOutcomes.WithLabelValues("unchanged").Add(float64(m.Unchanged))
	DefaultMetrics.HolderOutcomes.WithLabelValues("error").Add(float64(m.Error))
	DefaultMetrics.DonationsTotal.Add(float64(m.Donations))
}

// RecordBatch records a revalidation batch.
func RecordBatch(status string, durationSeconds float64) {
	DefaultMetrics.BatchesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BatchDuration.Observe(durationSeconds)
}

// RecordEnrollment records an enrollment attempt.
func RecordEnrollment(status string) {
	DefaultMetrics.Enrollments.WithLabelValues(status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateLastRevalidation sets the last successful revalidation timestamp.
func UpdateLastRevalidation(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRevalidation.Set(float64(unixSeconds))
}
