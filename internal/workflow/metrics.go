package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DomainMetrics extends graph.PrometheusMetrics with the one invoice-domain
// histogram the base engine has no concept of: the distribution of
// MATCH_TWO_WAY's final score, which operators watch to tune
// match_threshold and tolerance_pct.
type DomainMetrics struct {
	matchScore prometheus.Histogram
}

// NewDomainMetrics registers the match_score histogram against registry
// (nil uses prometheus.DefaultRegisterer, matching graph.NewPrometheusMetrics).
func NewDomainMetrics(registry prometheus.Registerer) *DomainMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &DomainMetrics{
		matchScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "invoiced",
			Name:      "match_score",
			Help:      "MATCH_TWO_WAY final score distribution",
			Buckets:   []float64{0.0, 0.2, 0.4, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0},
		}),
	}
}

// Observe records one MATCH_TWO_WAY final score.
func (dm *DomainMetrics) Observe(score float64) {
	if dm == nil {
		return
	}
	dm.matchScore.Observe(score)
}
