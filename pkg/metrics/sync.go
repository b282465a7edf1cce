package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records remote call, merge, storage fallback and latch activity.
type SyncMetrics struct {
	remoteDuration  *prometheus.HistogramVec
	remoteFailures  *prometheus.CounterVec
	mergeRuns       *prometheus.CounterVec
	storeFallbacks  *prometheus.CounterVec
	latchContention *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cartsync_remote_call_duration_seconds",
		Help:    "Duration of commerce API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	remoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_remote_call_failures_total",
		Help: "Failed commerce API calls by error code.",
	}, []string{"op", "code"})
	mergeRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_merge_runs_total",
		Help: "Guest to account merge runs by outcome.",
	}, []string{"outcome"})
	storeFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_store_fallbacks_total",
		Help: "Local store writes that needed a reduced payload, by stage.",
	}, []string{"stage"})
	latchContention := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_latch_contention_total",
		Help: "Async sequences skipped because their latch was already held.",
	}, []string{"latch"})
	reg.MustRegister(remoteDuration, remoteFailures, mergeRuns, storeFallbacks, latchContention)
	return &SyncMetrics{
		remoteDuration:  remoteDuration,
		remoteFailures:  remoteFailures,
		mergeRuns:       mergeRuns,
		storeFallbacks:  storeFallbacks,
		latchContention: latchContention,
	}
}

// ObserveRemoteCall records the duration of a commerce API call.
func (m *SyncMetrics) ObserveRemoteCall(op string, duration time.Duration) {
	if m == nil || m.remoteDuration == nil {
		return
	}
	m.remoteDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncRemoteFailure counts a failed commerce API call.
func (m *SyncMetrics) IncRemoteFailure(op, code string) {
	if m == nil || m.remoteFailures == nil {
		return
	}
	m.remoteFailures.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

// IncMerge counts a merge run by outcome (merged, partial, skipped, empty).
func (m *SyncMetrics) IncMerge(outcome string) {
	if m == nil || m.mergeRuns == nil {
		return
	}
	m.mergeRuns.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStoreFallback counts a write that fell back to a smaller payload.
func (m *SyncMetrics) IncStoreFallback(stage string) {
	if m == nil || m.storeFallbacks == nil {
		return
	}
	m.storeFallbacks.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncLatchContention counts a skipped sequence.
func (m *SyncMetrics) IncLatchContention(latch string) {
	if m == nil || m.latchContention == nil {
		return
	}
	m.latchContention.WithLabelValues(normalizeLabel(latch)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
