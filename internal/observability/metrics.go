// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TrackFixesFetched         prometheus.Counter
	EnvironmentSamplesFetched prometheus.Counter
	ObservationsDecoded       prometheus.Counter
	SourceErrors              *prometheus.CounterVec

	// Discovery metrics
	StormsDiscovered prometheus.Counter

	// Spatial aggregation metrics
	BatchesFetched    prometheus.Counter
	BatchFetchErrors  prometheus.Counter
	BatchFetchLatency prometheus.Histogram
	BatchCacheHits    prometheus.Counter
	BatchCacheSize    prometheus.Gauge
	BinsAggregated    prometheus.Counter
	ObservationsKept  prometheus.Counter
	BinsSkippedNoRMW  prometheus.Counter

	// Feed metrics
	FeedMessagesReceived prometheus.Counter
	FeedReconnects       prometheus.Counter

	// Pipeline metrics
	StageRunsTotal   *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	StormsProcessed  *prometheus.CounterVec
	ArtifactsWritten prometheus.Counter
	EventsPublished  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "storm_align_lab"
	}

	return &Metrics{
		// Ingestion metrics
		TrackFixesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "track_fixes_fetched_total",
			Help:      "Total number of best-track fixes fetched",
		}),
		EnvironmentSamplesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "environment_samples_fetched_total",
			Help:      "Total number of environmental samples fetched",
		}),
		ObservationsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_decoded_total",
			Help:      "Total number of observations decoded from batches",
		}),
		SourceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "source_errors_total",
			Help:      "Total number of source errors by source and type",
		}, []string{"source", "error_type"}),

		// Discovery metrics
		StormsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "storms_discovered_total",
			Help:      "Total number of storms added to the population index",
		}),

		// Spatial aggregation metrics
		BatchesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "batches_fetched_total",
			Help:      "Total number of observation batches fetched",
		}),
		BatchFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "batch_fetch_errors_total",
			Help:      "Total number of batch fetches that failed and were skipped",
		}),
		BatchFetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "batch_fetch_latency_seconds",
			Help:      "Observation batch fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "batch_cache_hits_total",
			Help:      "Total number of batch reads served from the cache",
		}),
		BatchCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "batch_cache_size",
			Help:      "Current number of batches held in the cache",
		}),
		BinsAggregated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "bins_aggregated_total",
			Help:      "Total number of bins aggregated",
		}),
		ObservationsKept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "observations_kept_total",
			Help:      "Total number of observations inside the radius cutoff",
		}),
		BinsSkippedNoRMW: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "bins_skipped_no_rmw_total",
			Help:      "Total number of bins skipped for missing radius of maximum winds",
		}),

		// Feed metrics
		FeedMessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_received_total",
			Help:      "Total number of messages received from the live feed",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnections",
		}),

		// Pipeline metrics
		StageRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of stage runs by stage and status",
		}, []string{"stage", "status"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		StormsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "storms_processed_total",
			Help:      "Total number of storms processed by terminal status",
		}, []string{"status"}),
		ArtifactsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "artifacts_written_total",
			Help:      "Total number of per-storm artifact sets written",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_published_total",
			Help:      "Total number of storm completion events published",
		}),

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
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful batch run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBatchFetch records one observation batch fetch attempt.
func RecordBatchFetch(seconds float64, err error) {
	DefaultMetrics.BatchesFetched.Inc()
	DefaultMetrics.BatchFetchLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.BatchFetchErrors.Inc()
	}
}

// RecordBatchCacheHit increments the batch cache hit counter.
func RecordBatchCacheHit() {
	DefaultMetrics.BatchCacheHits.Inc()
}

// UpdateBatchCacheSize updates the batch cache size gauge.
func UpdateBatchCacheSize(batches int) {
	DefaultMetrics.BatchCacheSize.Set(float64(batches))
}

// RecordBinAggregated records one aggregated bin and its kept observations.
func RecordBinAggregated(kept int) {
	DefaultMetrics.BinsAggregated.Inc()
	DefaultMetrics.ObservationsKept.Add(float64(kept))
}

// RecordBinSkippedNoRMW increments the missing-RMW bin counter.
func RecordBinSkippedNoRMW() {
	DefaultMetrics.BinsSkippedNoRMW.Inc()
}

// RecordSourceError records a source error.
func RecordSourceError(source, errorType string) {
	DefaultMetrics.SourceErrors.WithLabelValues(source, errorType).Inc()
}

// RecordStageRun records a stage run.
func RecordStageRun(stage, status string, durationSeconds float64) {
	DefaultMetrics.StageRunsTotal.WithLabelValues(stage, status).Inc()
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStormProcessed records a storm reaching a terminal status.
func RecordStormProcessed(status string) {
	DefaultMetrics.StormsProcessed.WithLabelValues(status).Inc()
}

// RecordSuccessfulRun stamps the time a batch run finished without being
// canceled.
func RecordSuccessfulRun(t time.Time) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(t.Unix()))
}

// RecordStormDiscovered increments the storms discovered counter.
func RecordStormDiscovered() {
	DefaultMetrics.StormsDiscovered.Inc()
}

// RecordFeedMessage increments the feed messages counter.
func RecordFeedMessage() {
	DefaultMetrics.FeedMessagesReceived.Inc()
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordArtifactWritten increments the artifacts written counter.
func RecordArtifactWritten() {
	DefaultMetrics.ArtifactsWritten.Inc()
}

// RecordEventPublished increments the events published counter.
func RecordEventPublished() {
	DefaultMetrics.EventsPublished.Inc()
}
