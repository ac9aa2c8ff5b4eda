package shieldforge

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsIncRespectsEnabled(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		want    uint64
	}{
		{name: "disabled", enabled: false, want: 0},
		{name: "enabled", enabled: true, want: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMetrics(MetricsConfig{Enabled: tc.enabled})
			for i := 0; i < 3; i++ {
				m.Inc(MetricTokenValidated)
			}
			if got := m.Value(MetricTokenValidated); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
			if got := m.Value(MetricTokenRejected); got != 0 {
				t.Fatalf("untouched counter moved to %d", got)
			}
		})
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricPasswordHashed)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricPasswordHashed); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricValidateLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricTokenValidated)
	m.Inc(MetricTokenRejected)
	m.Inc(MetricTokenRejected)
	m.Observe(MetricValidateLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricTokenValidated] != 1 {
		t.Fatalf("expected MetricTokenValidated=1 got %d", snap.Counters[MetricTokenValidated])
	}
	if snap.Counters[MetricTokenRejected] != 2 {
		t.Fatalf("expected MetricTokenRejected=2 got %d", snap.Counters[MetricTokenRejected])
	}
	if len(snap.Histograms[MetricValidateLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricValidateLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLatency][0])
	}
}

func TestMetricsAddAndObserveOnlyLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Add(MetricChallengesSwept, 7)
	m.Add(MetricChallengesSwept, 0)
	m.Observe(MetricTokenIssued, time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricChallengesSwept] != 7 {
		t.Fatalf("expected 7, got %d", snap.Counters[MetricChallengesSwept])
	}
	if _, ok := snap.Histograms[MetricTokenIssued]; ok {
		t.Fatal("expected no histogram for a counter metric")
	}
}

func TestMetricsLatencyRequiresEnabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{EnableLatencyHistograms: true})
	if m.LatencyEnabled() {
		t.Fatal("latency must stay off while metrics are disabled")
	}
	m.Observe(MetricValidateLatency, time.Millisecond)
	if len(m.Snapshot().Histograms) != 0 {
		t.Fatal("expected empty histograms")
	}
}

func TestEngineMetricsDisabledSnapshotEmpty(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	engine := newTestEngine(t, cfg)

	token, err := engine.IssueToken(testPayload())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := engine.ValidateToken(context.Background(), token); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if snap := engine.MetricsSnapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap.Counters)
	}
}
