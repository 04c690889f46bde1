package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "astrelay" {
		t.Errorf("expected service name 'astrelay', got '%s'", cfg.ServiceName)
	}
	if cfg.JaegerURL != "http://localhost:14268/api/traces" {
		t.Errorf("unexpected Jaeger URL: %s", cfg.JaegerURL)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInit_DisabledIsNoop(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of disabled provider failed: %v", err)
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// No tracer provider configured: the no-op tracer still yields a span.
	_, span := StartSpan(ctx, "test.operation")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestAddSpanAttributes(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	AddSpanAttributes(ctx,
		attribute.String("test.key", "test.value"),
		attribute.Int("test.number", 42),
	)
}

func TestRecordError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	err := &testError{message: "test error"}
	RecordError(ctx, err)
}

func TestTraceHTTPRequest(t *testing.T) {
	_, span := TraceHTTPRequest(context.Background(), "GET", "/api/v1/posts")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceRelayMessage(t *testing.T) {
	_, span := TraceRelayMessage(context.Background(), "zodiac_action", "user_123")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceRepositoryOperation(t *testing.T) {
	_, span := TraceRepositoryOperation(context.Background(), "get", "constellations")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
