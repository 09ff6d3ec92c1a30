// Package metrics exposes prometheus/client_golang counters and
// gauges for the engine's ambient observability. This is a direct
// prometheus registry rather than an adaptation of the teacher's
// go-ethereum-style metrics.Registry + metrics/prometheus.Gatherer
// bridge, since this engine has no legacy registry type to bridge
// from in the first place.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the engine registers.
type Metrics struct {
	SubmitTotal      *prometheus.CounterVec
	SubmitLatency    prometheus.Histogram
	WorkersAlive     prometheus.Gauge
	RegistrySize     prometheus.Gauge
	MigrationsTotal  *prometheus.CounterVec
	ReplayDuration    prometheus.Histogram
}

// New creates and registers a fresh Metrics bundle against reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SubmitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paymentsengine",
			Name:      "submit_total",
			Help:      "Transactions submitted, labeled by outcome.",
		}, []string{"outcome"}),
		SubmitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "paymentsengine",
			Name:      "submit_latency_seconds",
			Help:      "Engine Submit() latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		WorkersAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "paymentsengine",
			Name:      "workers_alive",
			Help:      "Number of live per-account worker goroutines.",
		}),
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "paymentsengine",
			Name:      "registry_size",
			Help:      "Total accepted transaction IDs across all registry shards.",
		}),
		MigrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paymentsengine",
			Name:      "migrations_total",
			Help:      "Hot-to-cold transaction migrations, labeled by outcome.",
		}, []string{"outcome"}),
		ReplayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "paymentsengine",
			Name:      "replay_duration_seconds",
			Help:      "Time spent replaying the event log at startup.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.SubmitTotal,
		m.SubmitLatency,
		m.WorkersAlive,
		m.RegistrySize,
		m.MigrationsTotal,
		m.ReplayDuration,
	)
	return m
}

// Outcome labels for SubmitTotal/MigrationsTotal.
const (
	OutcomeOK  = "ok"
	OutcomeErr = "error"
)
