package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apierrors "github.com/kbukum/apiclient/errors"
)

func newTestInstruments(t *testing.T) (*Instruments, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	inst, err := NewInstruments(mp, tp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return inst, reader, rec
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("got %T, want Sum[int64]", agg)
	}
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("got ServiceName %s, want test-service", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("got Endpoint %s, want localhost:4318", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("got SampleRate %f, want 1.0", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")
	if cfg.Interval != 15*time.Second {
		t.Errorf("got Interval %v, want 15s", cfg.Interval)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{0.5, sdktrace.TraceIDRatioBased(0.5).Description()},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("rate %v: got %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestInstruments_Call(t *testing.T) {
	inst, reader, rec := newTestInstruments(t)
	ctx := context.Background()

	ctx1, span := inst.StartCall(ctx, "GET", "/users", "req-1")
	inst.RecordRetry(ctx1, "GET", 1, 503)
	inst.EndCall(ctx1, span, "GET", nil, 10*time.Millisecond)

	_, span = inst.StartCall(ctx, "GET", "/users", "req-2")
	inst.EndCall(ctx, span, "GET", apierrors.HTTP(404, "", ""), time.Millisecond)

	metrics := collect(t, reader)
	if got := sumOf(t, metrics["apiclient.call.total"]); got != 2 {
		t.Errorf("got %d calls, want 2", got)
	}
	if got := sumOf(t, metrics["apiclient.retry.total"]); got != 1 {
		t.Errorf("got %d retries, want 1", got)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("got %d events on first span, want 1", len(spans[0].Events()))
	}
	if spans[1].Status().Description != string(apierrors.ErrCodeNotFound) {
		t.Errorf("got status %q, want not_found", spans[1].Status().Description)
	}
}

func TestInstruments_Renewal(t *testing.T) {
	inst, reader, rec := newTestInstruments(t)
	ctx, span := inst.StartRenewal(context.Background())
	inst.RecordRenewal(ctx, RenewalSucceeded, 3)
	span.End()

	metrics := collect(t, reader)
	if got := sumOf(t, metrics["apiclient.renewal.total"]); got != 1 {
		t.Errorf("got %d renewals, want 1", got)
	}
	if len(rec.Ended()) != 1 || rec.Ended()[0].Name() != SpanRenewal {
		t.Errorf("expected one %s span", SpanRenewal)
	}
}

func TestInstruments_Nil(t *testing.T) {
	var inst *Instruments
	ctx, span := inst.StartCall(context.Background(), "GET", "/", "")
	inst.RecordRetry(ctx, "GET", 1, 500)
	inst.EndCall(ctx, span, "GET", errors.New("x"), 0)
	inst.RecordRenewal(ctx, RenewalFailed, 0)
}

type staticChecker Health

func (c staticChecker) CheckHealth(context.Context) Health { return Health(c) }

func TestServiceHealth(t *testing.T) {
	tests := []struct {
		name       string
		components []Health
		want       HealthStatus
	}{
		{"empty", nil, HealthStatusUp},
		{"all up", []Health{{Name: "a", Status: HealthStatusUp}}, HealthStatusUp},
		{"degraded", []Health{{Name: "a", Status: HealthStatusUp}, {Name: "b", Status: HealthStatusDegraded}}, HealthStatusDegraded},
		{"down wins", []Health{{Name: "a", Status: HealthStatusDown}, {Name: "b", Status: HealthStatusDegraded}}, HealthStatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var checkers []HealthChecker
			for _, h := range tt.components {
				checkers = append(checkers, staticChecker(h))
			}
			sh := NewServiceHealth("svc", "1.0.0").Check(context.Background(), checkers...)
			if sh.Status != tt.want {
				t.Errorf("got %s, want %s", sh.Status, tt.want)
			}
			if len(sh.Components) != len(tt.components) {
				t.Errorf("got %d components, want %d", len(sh.Components), len(tt.components))
			}
		})
	}
}
