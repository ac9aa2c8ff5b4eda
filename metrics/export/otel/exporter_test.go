package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/shieldforge"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot shieldforge.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() shieldforge.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := shieldforge.MetricsSnapshot{
		Counters:   make(map[shieldforge.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[shieldforge.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("shieldforge-test")

	src := &fakeSource{
		snapshot: shieldforge.MetricsSnapshot{
			Counters: map[shieldforge.MetricID]uint64{
				shieldforge.MetricTokenValidated: 3,
			},
			Histograms: map[shieldforge.MetricID][]uint64{
				shieldforge.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	validated, ok := findMetric(rm, "shieldforge_token_validated_total")
	if !ok {
		t.Fatal("expected shieldforge_token_validated_total")
	}
	sum, ok := validated.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected validated data: %#v", validated.Data)
	}

	buckets, ok := findMetric(rm, "shieldforge_validate_latency_seconds_bucket")
	if !ok {
		t.Fatal("expected bucket gauge")
	}
	gauge, ok := buckets.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %#v", buckets.Data)
	}
	var inf int64
	for _, dp := range gauge.DataPoints {
		if v, ok := dp.Attributes.Value("le"); ok && v.AsString() == "+Inf" {
			inf = dp.Value
		}
	}
	if inf != 8 {
		t.Fatalf("expected +Inf bucket 8, got %d", inf)
	}

	if _, ok := findMetric(rm, "shieldforge_audit_dropped_total"); !ok {
		t.Fatal("expected audit dropped counter")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("shieldforge-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterWithEngine(t *testing.T) {
	reader, provider := newReader()

	engine, err := shieldforge.New().WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	exp, err := NewExporter(provider.Meter("shieldforge-test"), engine)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	if _, err := engine.GenerateResetCode(8); err != nil {
		t.Fatalf("GenerateResetCode failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	m, ok := findMetric(rm, "shieldforge_reset_code_generated_total")
	if !ok {
		t.Fatal("expected reset code counter")
	}
	if sum := m.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 1 {
		t.Fatalf("expected 1, got %d", sum.DataPoints[0].Value)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("shieldforge-test")

	src := &fakeSource{
		snapshot: shieldforge.MetricsSnapshot{
			Counters: map[shieldforge.MetricID]uint64{
				shieldforge.MetricTokenValidated: 1,
			},
			Histograms: map[shieldforge.MetricID][]uint64{
				shieldforge.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[shieldforge.MetricTokenValidated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterSilentWhenMetricsDisabled(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: shieldforge.MetricsSnapshot{
		Counters:   map[shieldforge.MetricID]uint64{},
		Histograms: map[shieldforge.MetricID][]uint64{},
	}}

	exp, err := NewExporterFromSource(provider.Meter("shieldforge-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := findMetric(rm, "shieldforge_token_validated_total"); ok {
		t.Fatal("expected no series while metrics are disabled")
	}
}
