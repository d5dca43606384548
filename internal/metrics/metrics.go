package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Snapshot refresh metrics
	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	snapshotSecrets *prometheus.GaugeVec

	// Store and lookup metrics
	remoteCallsTotal *prometheus.CounterVec
	lookupsTotal     *prometheus.CounterVec

	// Registration guard. metricsRegistered is set only after every vector
	// above is assigned.
	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// Recorder provides methods to record lookup metrics.
type Recorder struct{}

// NewRecorder creates a new Recorder. Recording is a no-op until Init has
// been called.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Init registers all Prometheus metrics with the default registry.
// This should be called once at startup if metrics are enabled.
func Init() {
	metricsOnce.Do(func() {
		refreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvconfig_refresh_total",
				Help: "Total number of snapshot refreshes by outcome",
			},
			[]string{"store", "status"},
		)

		refreshDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvconfig_refresh_duration_seconds",
				Help:    "Duration of snapshot refreshes in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"store"},
		)

		snapshotSecrets = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kvconfig_snapshot_secrets",
				Help: "Number of secrets held by the current snapshot",
			},
			[]string{"store"},
		)

		remoteCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvconfig_remote_calls_total",
				Help: "Total number of calls made to the remote secret store",
			},
			[]string{"store", "op"},
		)

		lookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvconfig_lookups_total",
				Help: "Total number of single-property lookups by outcome",
			},
			[]string{"strategy", "outcome"},
		)

		metricsRegistered.Store(true)
	})
}

// RecordRefresh records a completed or failed snapshot refresh.
func (r *Recorder) RecordRefresh(store string, err error, duration time.Duration, secrets int) {
	if !metricsRegistered.Load() {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	refreshTotal.WithLabelValues(store, status).Inc()
	refreshDuration.WithLabelValues(store).Observe(duration.Seconds())
	if err == nil {
		snapshotSecrets.WithLabelValues(store).Set(float64(secrets))
	}
}

// RecordRemoteCall records one call to the remote store.
func (r *Recorder) RecordRemoteCall(store, op string) {
	if !metricsRegistered.Load() {
		return
	}
	remoteCallsTotal.WithLabelValues(store, op).Inc()
}

// RecordLookup records the outcome of a single-property lookup.
func (r *Recorder) RecordLookup(strategy, outcome string) {
	if !metricsRegistered.Load() {
		return
	}
	lookupsTotal.WithLabelValues(strategy, outcome).Inc()
}

// RefreshTotal returns the refresh counter for testing.
func RefreshTotal() *prometheus.CounterVec {
	return refreshTotal
}

// RemoteCallsTotal returns the remote call counter for testing.
func RemoteCallsTotal() *prometheus.CounterVec {
	return remoteCallsTotal
}

// LookupsTotal returns the lookup counter for testing.
func LookupsTotal() *prometheus.CounterVec {
	return lookupsTotal
}

// SnapshotSecrets returns the snapshot size gauge for testing.
func SnapshotSecrets() *prometheus.GaugeVec {
	return snapshotSecrets
}

// IsRegistered returns whether metrics have been initialized.
func IsRegistered() bool {
	return metricsRegistered.Load()
}
