package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	RecordsRead       prometheus.Counter
	RecordsAligned    prometheus.Counter
	RecordsRejected   *prometheus.CounterVec // label: reason
	RecordsSkipped    prometheus.Counter     // malformed entries dropped by normalizers
	ObsInserted       prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	RunActive         prometheus.Gauge

	BatchSize   prometheus.Histogram
	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsRead,
		m.RecordsAligned,
		m.RecordsRejected,
		m.RecordsSkipped,
		m.ObsInserted,
		m.DuplicatesSkipped,
		m.RunActive,
		m.BatchSize,
		m.RunDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crmprtd",
			Name:      "records_read_total",
			Help:      "Total raw records produced by normalizers and sources.",
		}),
		RecordsAligned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crmprtd",
			Name:      "records_aligned_total",
			Help:      "Total records accepted by the alignment engine.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crmprtd",
			Name:      "records_rejected_total",
			Help:      "Total records rejected by the alignment engine, by reason.",
		}, []string{"reason"}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crmprtd",
			Name:      "records_skipped_total",
			Help:      "Total malformed entries skipped during normalization.",
		}),
		ObsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crmprtd",
			Name:      "observations_inserted_total",
			Help:      "Total observations persisted to the canonical store.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crmprtd",
			Name:      "duplicates_skipped_total",
			Help:      "Total observations skipped as duplicates on insert.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crmprtd",
			Name:      "run_active",
			Help:      "1 while an ingestion run is in progress.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crmprtd",
			Name:      "batch_size",
			Help:      "Raw records per ingestion run.",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crmprtd",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete normalize-align-insert run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}),
	}
}
