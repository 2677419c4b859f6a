package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"reframe/internal/config"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.Tracing{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresEndpoint(t *testing.T) {
	if _, err := Init(context.Background(), config.Tracing{Enabled: true}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestTracerUsesGlobalProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, span := Tracer().Start(context.Background(), "draining")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "draining" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	if spans[0].InstrumentationScope().Name != InstrumentationName {
		t.Fatalf("unexpected scope %q", spans[0].InstrumentationScope().Name)
	}
}
