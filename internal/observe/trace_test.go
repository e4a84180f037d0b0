package observe

import (
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Swaps in a recording tracer provider for the duration of the test.
// Not parallel: the provider is global.
func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestStartSpan(t *testing.T) {
	sr := withSpanRecorder(t)

	ctx, span := StartSpan(context.Background(), "tts.synthesize")
	if !span.SpanContext().HasTraceID() {
		t.Error("started span has no trace id")
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("returned context carries no span")
	}
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(ended))
	}
	if got := ended[0].Name(); got != "tts.synthesize" {
		t.Errorf("span name = %q, want tts.synthesize", got)
	}
}

func TestLoggerCarriesSpanContext(t *testing.T) {
	withSpanRecorder(t)

	if got := Logger(context.Background()); got != slog.Default() {
		t.Error("Logger without a span did not return the default logger")
	}

	ctx, span := StartSpan(context.Background(), "lesson.generate")
	defer span.End()
	if got := Logger(ctx); got == slog.Default() {
		t.Error("Logger inside a span returned the bare default logger")
	}
}
