package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
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

func TestNewMetrics_CreatesAllInstruments(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	if m.LLMDuration == nil || m.TTSDuration == nil || m.ImageDuration == nil {
		t.Error("histogram instruments missing")
	}
	if m.VerificationResults == nil || m.LessonsCompleted == nil || m.ProviderErrors == nil {
		t.Error("counter instruments missing")
	}
	if m.ActiveSessions == nil {
		t.Error("gauge instrument missing")
	}
}

func TestRecordVerification(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordVerification(ctx, "spanish", true)
	m.RecordVerification(ctx, "spanish", false)
	m.RecordVerification(ctx, "japanese", true)

	rm := collect(t, reader)
	metric, ok := findMetric(rm, "verbalis.verification.results")
	if !ok {
		t.Fatal("verification counter not collected")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", metric.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total verifications = %d, want 3", total)
	}
	// accept/reject split across languages produces three attribute sets.
	if len(sum.DataPoints) != 3 {
		t.Errorf("data points = %d, want 3", len(sum.DataPoints))
	}
}

func TestRecordLessonCompleted(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.RecordLessonCompleted(context.Background(), "korean")

	rm := collect(t, reader)
	if _, ok := findMetric(rm, "verbalis.lessons.completed"); !ok {
		t.Fatal("lessons counter not collected")
	}
}

func TestRecordProviderError(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.RecordProviderError(context.Background(), "elevenlabs", "tts")

	rm := collect(t, reader)
	metric, ok := findMetric(rm, "verbalis.provider.errors")
	if !ok {
		t.Fatal("provider error counter not collected")
	}
	sum := metric.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("data points = %+v", sum.DataPoints)
	}
}
