package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the pipeline. All helpers are
// nil-safe so tests can pass a nil *Metrics and skip registration.
type Metrics struct {
	TrialsIngested     prometheus.Counter
	IngestFailures     prometheus.Counter
	QualityRunDuration prometheus.Histogram
	QualityRunIssues   prometheus.Gauge
}

// New creates and registers all collectors with the default registry.
func New() *Metrics {
	return &Metrics{
		TrialsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trialstore_trials_ingested_total",
			Help: "Trial records successfully persisted, counting re-ingests.",
		}),
		IngestFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trialstore_ingest_failures_total",
			Help: "Trial records whose transaction rolled back.",
		}),
		QualityRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialstore_quality_run_duration_seconds",
			Help:    "Wall time of a full quality check run.",
			Buckets: prometheus.DefBuckets,
		}),
		QualityRunIssues: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trialstore_quality_issues",
			Help: "Total issues reported by the most recent quality run.",
		}),
	}
}

func (m *Metrics) RecordIngested() {
	if m == nil {
		return
	}
	m.TrialsIngested.Inc()
}

func (m *Metrics) RecordIngestFailure() {
	if m == nil {
		return
	}
	m.IngestFailures.Inc()
}

func (m *Metrics) ObserveQualityRun(seconds float64, issues int) {
	if m == nil {
		return
	}
	m.QualityRunDuration.Observe(seconds)
	m.QualityRunIssues.Set(float64(issues))
}
