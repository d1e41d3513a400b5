package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the scoring engine.
type Metrics struct {
	// Score computations by scorer
	ScoresComputed *prometheus.CounterVec

	// Batch (whole-graph) computation latencies by job
	BatchLatency *prometheus.HistogramVec

	// Background trust-score refresh failures
	RefreshFailures prometheus.Counter
}

// New creates a new Metrics instance with all scoring metrics registered.
func New() *Metrics {
	return &Metrics{
		ScoresComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_scoring_scores_computed_total",
			Help: "Total score computations by scorer",
		}, []string{"scorer"}), // scorer: "confidence", "advanced_confidence", "interaction_trust", "pagerank", "propagation", "prediction"

		BatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ripple_scoring_batch_duration_seconds",
			Help:    "Duration of whole-graph batch computations by job",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"job"}), // job: "pagerank", "prediction"

		RefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ripple_scoring_trust_refresh_failures_total",
			Help: "Total background trust-score refresh failures",
		}),
	}
}

// IncScoresComputed records one score computation.
func (m *Metrics) IncScoresComputed(scorer string) {
	if m != nil {
		m.ScoresComputed.WithLabelValues(scorer).Inc()
	}
}

// ObserveBatchLatency records the duration of a whole-graph batch job.
func (m *Metrics) ObserveBatchLatency(job string, d time.Duration) {
	if m != nil {
		m.BatchLatency.WithLabelValues(job).Observe(d.Seconds())
	}
}

// IncRefreshFailure records a swallowed trust-score refresh error.
func (m *Metrics) IncRefreshFailure() {
	if m != nil {
		m.RefreshFailures.Inc()
	}
}
