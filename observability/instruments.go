package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/kbukum/apiclient/errors"
)

const instrumentationName = "github.com/kbukum/apiclient"

// Span and attribute names.
const (
	SpanCall    = "apiclient.call"
	SpanRenewal = "apiclient.renewal"

	AttrMethod    = "http.request.method"
	AttrPath      = "url.path"
	AttrStatus    = "http.response.status_code"
	AttrRequestID = "request.id"
	AttrCode      = "error.code"
	AttrOutcome   = "outcome"
	AttrAttempt   = "retry.attempt"
)

// Renewal outcomes.
const (
	RenewalSucceeded = "succeeded"
	RenewalFailed    = "failed"
	RenewalDiscarded = "discarded"
)

// Instruments holds the tracer and metric instruments of the client. A nil
// *Instruments records nothing.
type Instruments struct {
	tracer         trace.Tracer
	callTotal      metric.Int64Counter
	callDuration   metric.Float64Histogram
	retryTotal     metric.Int64Counter
	renewalTotal   metric.Int64Counter
	renewalWaiters metric.Int64Histogram
}

// NewInstruments creates instruments on the given providers. Nil providers
// fall back to the global ones.
func NewInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)

	callTotal, err := meter.Int64Counter("apiclient.call.total",
		metric.WithDescription("Logical API calls by method and outcome code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating apiclient.call.total counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("apiclient.call.duration",
		metric.WithDescription("Duration of logical API calls including retries and renewal"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating apiclient.call.duration histogram: %w", err)
	}

	retryTotal, err := meter.Int64Counter("apiclient.retry.total",
		metric.WithDescription("Retries scheduled after transient failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating apiclient.retry.total counter: %w", err)
	}

	renewalTotal, err := meter.Int64Counter("apiclient.renewal.total",
		metric.WithDescription("Credential renewal exchanges by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating apiclient.renewal.total counter: %w", err)
	}

	renewalWaiters, err := meter.Int64Histogram("apiclient.renewal.waiters",
		metric.WithDescription("Callers released by one renewal"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating apiclient.renewal.waiters histogram: %w", err)
	}

	return &Instruments{
		tracer:         tp.Tracer(instrumentationName),
		callTotal:      callTotal,
		callDuration:   callDuration,
		retryTotal:     retryTotal,
		renewalTotal:   renewalTotal,
		renewalWaiters: renewalWaiters,
	}, nil
}

// StartCall starts the span covering one logical call.
func (i *Instruments) StartCall(ctx context.Context, method, path, requestID string) (context.Context, trace.Span) {
	if i == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, SpanCall,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrMethod, method),
			attribute.String(AttrPath, path),
			attribute.String(AttrRequestID, requestID),
		),
	)
}

// EndCall ends the call span and records the call metrics. err is nil on
// success.
func (i *Instruments) EndCall(ctx context.Context, span trace.Span, method string, err error, d time.Duration) {
	if i == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = string(apierrors.ErrCodeUnknown)
		if e, ok := apierrors.From(err); ok {
			code = string(e.Code)
			if e.StatusCode != 0 {
				span.SetAttributes(attribute.Int(AttrStatus, e.StatusCode))
			}
		}
		span.SetAttributes(attribute.String(AttrCode, code))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
	}
	span.End()

	i.callTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrCode, code),
	))
	i.callDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(AttrMethod, method),
	))
}

// RecordRetry counts a scheduled retry and notes it on the active span.
func (i *Instruments) RecordRetry(ctx context.Context, method string, attempt, status int) {
	if i == nil {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
		attribute.Int(AttrAttempt, attempt),
		attribute.Int(AttrStatus, status),
	))
	i.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrStatus, strconv.Itoa(status)),
	))
}

// StartRenewal starts the span covering one renewal exchange.
func (i *Instruments) StartRenewal(ctx context.Context) (context.Context, trace.Span) {
	if i == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, SpanRenewal, trace.WithSpanKind(trace.SpanKindClient))
}

// RecordRenewal counts a settled renewal and the callers it released.
func (i *Instruments) RecordRenewal(ctx context.Context, outcome string, waiters int) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))
	i.renewalTotal.Add(ctx, 1, attrs)
	i.renewalWaiters.Record(ctx, int64(waiters), attrs)
}
