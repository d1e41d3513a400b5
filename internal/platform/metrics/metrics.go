package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus metrics.
type Metrics struct {
	HTTPLatency *prometheus.HistogramVec
}

// New creates and registers all process-wide metrics.
func New() *Metrics {
	return &Metrics{
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ripple_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
