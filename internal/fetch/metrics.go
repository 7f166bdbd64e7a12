package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the fetch layer.
type Metrics struct {
	// Cache lookups by dataset and result (hit, refreshed, stale, failed).
	CacheRequests *prometheus.CounterVec

	// Provider attempts by provider, operation and outcome (ok, error, skipped).
	ProviderAttempts *prometheus.CounterVec

	// Wall time of a full refresh sequence across providers.
	RefreshDuration *prometheus.HistogramVec

	// Age of the snapshot served, in seconds, per dataset.
	SnapshotAge *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundquant_cache_requests_total",
				Help: "Snapshot requests by dataset and cache result",
			},
			[]string{"dataset", "result"},
		),

		ProviderAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundquant_provider_attempts_total",
				Help: "Provider calls by provider, operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),

		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundquant_refresh_duration_seconds",
				Help:    "Duration of a snapshot or history fetch across all providers",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"op"},
		),

		SnapshotAge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fundquant_snapshot_age_seconds",
				Help: "Age of the most recently served snapshot",
			},
			[]string{"dataset"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.CacheRequests, m.ProviderAttempts, m.RefreshDuration, m.SnapshotAge)
	}
	return m
}
