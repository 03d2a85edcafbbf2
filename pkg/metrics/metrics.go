package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bulk execution metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idman_operations_total",
			Help: "Total bulk operations by type and outcome",
		},
		[]string{"operation", "status"},
	)

	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idman_retries_total",
			Help: "Total retry attempts across all operations",
		},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "idman_batch_duration_seconds",
			Help:    "Duration of bulk batch runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Resolver metrics
	ResolverLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idman_resolver_lookups_total",
			Help: "Resolver lookups by kind and cache outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Restore metrics
	RestorePhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idman_restore_phase_duration_seconds",
			Help:    "Duration of restore phases",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	RollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idman_rollbacks_total",
			Help: "Total restore rollbacks triggered",
		},
	)

	// Retention metrics
	RetentionDeletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idman_retention_deletions_total",
			Help: "Total backups deleted by retention enforcement",
		},
	)

	// Storage metrics
	StorageBackupsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "idman_storage_backups_total",
			Help: "Number of backups currently stored",
		},
	)

	StorageSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "idman_storage_size_bytes",
			Help: "Aggregate size of stored backups in bytes",
		},
	)
)

func init() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(RetriesTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(ResolverLookupsTotal)
	prometheus.MustRegister(RestorePhaseDuration)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(RetentionDeletionsTotal)
	prometheus.MustRegister(StorageBackupsTotal)
	prometheus.MustRegister(StorageSizeBytes)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
