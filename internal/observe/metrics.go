// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, and the Prometheus scrape endpoint that
// exposes them.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged
// to Prometheus via [InitProvider]. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should
// use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/verbalis/verbalis"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// LLMDuration tracks lesson-generation and judging latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ImageDuration tracks illustration generation latency.
	ImageDuration metric.Float64Histogram

	// VerificationResults counts verification outcomes. Use with attributes:
	//   attribute.String("language", ...), attribute.String("outcome", ...)
	VerificationResults metric.Int64Counter

	// LessonsCompleted counts completed lessons by language.
	LessonsCompleted metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks the number of lessons currently in progress.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Lesson
// generation can take tens of seconds, so the tail is long.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("verbalis.llm.duration",
		metric.WithDescription("Latency of LLM calls (generation, splitting, judging)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("verbalis.tts.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ImageDuration, err = m.Float64Histogram("verbalis.image.duration",
		metric.WithDescription("Latency of illustration generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.VerificationResults, err = m.Int64Counter("verbalis.verification.results",
		metric.WithDescription("Verification outcomes by language and outcome."),
	); err != nil {
		return nil, err
	}
	if met.LessonsCompleted, err = m.Int64Counter("verbalis.lessons.completed",
		metric.WithDescription("Completed lessons by language."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("verbalis.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("verbalis.active_sessions",
		metric.WithDescription("Number of lessons currently in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Panics if instrument
// creation fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordVerification records one verification outcome.
func (m *Metrics) RecordVerification(ctx context.Context, language string, accepted bool) {
	outcome := "reject"
	if accepted {
		outcome = "accept"
	}
	m.VerificationResults.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordLessonCompleted records one lesson completion.
func (m *Metrics) RecordLessonCompleted(ctx context.Context, language string) {
	m.LessonsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)),
	)
}

// RecordProviderError records one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
