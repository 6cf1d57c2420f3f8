package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/steveyegge/clewcrew/internal/types"
)

// Metrics holds the server's Prometheus collectors. Each server owns its
// registry so tests can run servers side by side.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	expertDuration *prometheus.HistogramVec
	qualityScore   *prometheus.GaugeVec
	composite      prometheus.Gauge
	timeouts       *prometheus.CounterVec
}

// NewMetrics registers the clewcrew collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clewcrew_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		expertDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clewcrew_expert_duration_seconds",
			Help:    "Time each expert spent on detection.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"expert"}),
		qualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clewcrew_quality_score",
			Help: "Most recent quality score per expert.",
		}, []string{"expert"}),
		composite: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clewcrew_composite_score",
			Help: "Most recent weighted composite score.",
		}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clewcrew_expert_incomplete_total",
			Help: "Expert runs that timed out or failed and were scored as no evidence.",
		}, []string{"expert"}),
	}
	m.registry.MustRegister(m.requests, m.expertDuration, m.qualityScore, m.composite, m.timeouts)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeReport(r *types.Report) {
	for _, d := range r.Domains {
		m.expertDuration.WithLabelValues(d.Expert).Observe(d.Duration.Seconds())
		m.qualityScore.WithLabelValues(d.Expert).Set(d.Metrics.QualityScore)
		if d.TimedOut {
			m.timeouts.WithLabelValues(d.Expert).Inc()
		}
	}
	if r.HasComposite {
		m.composite.Set(r.Composite)
	}
}
