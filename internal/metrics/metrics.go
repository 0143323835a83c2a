// Package metrics exposes prometheus collectors for the session lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "session_client"

// Metrics groups the collectors updated by the refresher, invalidator and probe.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RefreshAttempts *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	Invalidations   *prometheus.CounterVec
	Probes          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_attempts_total",
			Help:      "Refresh calls sent to the auth backend, by outcome and error kind.",
		}, []string{"outcome", "kind"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Latency of refresh calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Session teardowns, by reason.",
		}, []string{"reason"}),
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Session probes against the me endpoint, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.RefreshAttempts, m.RefreshDuration, m.Invalidations, m.Probes)
	}
	return m
}

func (m *Metrics) ObserveRefresh(outcome, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.RefreshAttempts.WithLabelValues(outcome, kind).Inc()
	m.RefreshDuration.Observe(seconds)
}

func (m *Metrics) ObserveInvalidation(reason string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveProbe(result string) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(result).Inc()
}
