package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/adrelay/adrelay-go/sdk"
)

// outcome labels a finished request for metrics
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if sdkErr, ok := sdk.AsError(err); ok {
		return sdkErr.Kind.String()
	}
	return "other"
}

// MetricsObserver records SDK activity in Prometheus collectors.
type MetricsObserver struct {
	sdk.NoopObserver
	metrics *ClientMetrics
}

// NewMetricsObserver creates an observer recording into metrics
func NewMetricsObserver(metrics *ClientMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

// OnAttemptEnd counts the attempt by status
func (o *MetricsObserver) OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error) {
	o.metrics.attempts.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	o.metrics.attemptDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// OnRetryAttempt counts the retry and its delay
func (o *MetricsObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
	o.metrics.retries.WithLabelValues(method, path, outcome(err)).Inc()
	o.metrics.backoffDelay.Observe(delay.Seconds())
}

// OnRequestEnd counts the request by outcome
func (o *MetricsObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	o.metrics.requests.WithLabelValues(method, path, outcome(err)).Inc()
	o.metrics.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TracingObserver wraps every logical request in a client span. Each
// attempt and retry decision becomes a span event, and retries are also
// counted on an OpenTelemetry meter.
type TracingObserver struct {
	tracer  trace.Tracer
	retries metric.Int64Counter
}

// NewTracingObserver creates an observer using the given providers.
// Nil providers fall back to the global ones.
func NewTracingObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*TracingObserver, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	retries, err := mp.Meter(instrumentationName).Int64Counter(
		"adrelay.client.retries",
		metric.WithDescription("Retries performed by the SDK transport"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &TracingObserver{
		tracer:  tp.Tracer(instrumentationName),
		retries: retries,
	}, nil
}

// OnRequestStart opens the request span
func (o *TracingObserver) OnRequestStart(ctx context.Context, method, path string) context.Context {
	ctx, _ = o.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	return ctx
}

// OnAttemptEnd adds an attempt event
func (o *TracingObserver) OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("attempt", attempt),
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.kind", outcome(err)))
	}
	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(attrs...))
}

// OnRetryAttempt adds a retry event and counts it
func (o *TracingObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
	kind := outcome(err)
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int64("delay_ms", delay.Milliseconds()),
		attribute.String("error.kind", kind),
	))
	o.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("error.kind", kind),
	))
}

// OnRequestEnd sets the span status and ends it
func (o *TracingObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		if code := sdk.StatusCode(err); code != 0 {
			span.SetAttributes(attribute.Int("http.status_code", code))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NewObserver combines logging, Prometheus and tracing observers.
// reg may be nil to skip Prometheus collection.
func NewObserver(reg prometheus.Registerer) (sdk.Observer, error) {
	observers := []sdk.Observer{sdk.NewLogObserver(L())}

	if reg != nil {
		observers = append(observers, NewMetricsObserver(NewClientMetrics(reg)))
	}

	tracing, err := NewTracingObserver(nil, nil)
	if err != nil {
		return nil, err
	}
	observers = append(observers, tracing)

	return sdk.NewCompositeObserver(observers...), nil
}
