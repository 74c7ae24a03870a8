package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the submission service.
type Metrics struct {
	SubmissionsCreated  prometheus.Counter
	SubmissionsRejected *prometheus.CounterVec
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	StatsDegraded       prometheus.Counter
}

// New creates and registers all metrics against the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate
// registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "claim_intake_submissions_created_total",
			Help: "Total number of submissions persisted.",
		}),
		SubmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_intake_submissions_rejected_total",
			Help: "Total number of rejected submissions by reason.",
		}, []string{"reason"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_intake_cache_hits_total",
			Help: "Query cache hits by entry.",
		}, []string{"cache"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_intake_cache_misses_total",
			Help: "Query cache misses by entry.",
		}, []string{"cache"}),
		StatsDegraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "claim_intake_stats_degraded_total",
			Help: "Statistics responses served in degraded, total-only form.",
		}),
	}
}

// The service tolerates a nil *Metrics, so every recorder guards itself.

func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.SubmissionsCreated.Inc()
}

func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.SubmissionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordStatsDegraded() {
	if m == nil {
		return
	}
	m.StatsDegraded.Inc()
}
