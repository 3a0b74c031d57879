package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion runs.
type Metrics struct {
	RecordsFetched   *prometheus.CounterVec // labels: source
	RecordsRejected  *prometheus.CounterVec // labels: source
	RecordsPersisted *prometheus.CounterVec // labels: source
	PersistErrors    *prometheus.CounterVec // labels: source
	SourceRuns       *prometheus.CounterVec // labels: source, status={SUCCEEDED,FAILED}

	FetchDuration *prometheus.HistogramVec // labels: source
	RunDuration   prometheus.Histogram

	LastRunTimestamp prometheus.Gauge
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates and registers all ingestion metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(
		m.RecordsFetched,
		m.RecordsRejected,
		m.RecordsPersisted,
		m.PersistErrors,
		m.SourceRuns,
		m.FetchDuration,
		m.RunDuration,
		m.LastRunTimestamp,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtdas_ingest",
			Name:      "records_fetched_total",
			Help:      "Records returned by upstream sources.",
		}, []string{"source"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtdas_ingest",
			Name:      "records_rejected_total",
			Help:      "Records dropped by validation (missing, empty or -99 fields).",
		}, []string{"source"}),
		RecordsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtdas_ingest",
			Name:      "records_persisted_total",
			Help:      "Records written without error, including conflict no-ops.",
		}, []string{"source"}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtdas_ingest",
			Name:      "persist_errors_total",
			Help:      "Records whose write failed and was skipped.",
		}, []string{"source"}),
		SourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtdas_ingest",
			Name:      "source_runs_total",
			Help:      "Completed source runs by terminal status.",
		}, []string{"source", "status"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rtdas_ingest",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rtdas_ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete run across all sources.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtdas_ingest",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtdas_ingest",
			Name:      "scheduler_running",
			Help:      "1 when the periodic scheduler is active, 0 when shut down.",
		}),
	}
}
