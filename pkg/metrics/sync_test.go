package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSyncMetricsRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.IncRemoteFailure("cart.add", "TIMEOUT")
	m.IncRemoteFailure("cart.add", "TIMEOUT")
	m.IncMerge("partial")
	m.IncStoreFallback("essential")
	m.IncLatchContention("")
	m.ObserveRemoteCall("cart.fetch", 150*time.Millisecond)

	if got := testutil.ToFloat64(m.remoteFailures.WithLabelValues("cart.add", "TIMEOUT")); got != 2 {
		t.Fatalf("expected 2 failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.mergeRuns.WithLabelValues("partial")); got != 1 {
		t.Fatalf("expected 1 merge run, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeFallbacks.WithLabelValues("essential")); got != 1 {
		t.Fatalf("expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(m.latchContention.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty latch label normalized to unknown, got %v", got)
	}
	if got := testutil.CollectAndCount(m.remoteDuration); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestSyncMetricsNilSafe(t *testing.T) {
	var m *SyncMetrics
	m.IncMerge("merged")
	m.ObserveRemoteCall("cart.fetch", time.Second)

	empty := NewSyncMetrics(nil)
	empty.IncRemoteFailure("cart.add", "NETWORK_ERROR")
	empty.IncStoreFallback("dropped")
}
