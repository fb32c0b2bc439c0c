package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName identifies spans and instruments created here
const instrumentationName = "github.com/adrelay/adrelay-go"

// FileSpanExporter writes finished spans as JSON lines
type FileSpanExporter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// FileSpan is the JSON form of an exported span
type FileSpan struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Name       string         `json:"name"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Attributes map[string]any `json:"attributes"`
	Status     string         `json:"status"`
	Events     []SpanEvent    `json:"events,omitempty"`
}

// SpanEvent is the JSON form of a span event
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// newResource describes this process to exporters
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider creates a tracer provider exporting over OTLP/gRPC, or
// to a JSON lines file when cfg.ExportToFile is set.
func NewTracerProvider(ctx context.Context, cfg *Config) (*sdktrace.TracerProvider, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if cfg.ExportToFile && cfg.TracesFilePath != "" {
		exporter, err = NewFileSpanExporter(cfg.TracesFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create file exporter: %w", err)
		}
	} else {
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		exporter, err = otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	), nil
}

// InitTracing installs the global tracer provider and propagator.
// With tracing disabled a noop provider is installed.
func InitTracing(ctx context.Context, cfg *Config) error {
	if !cfg.EnableTracing {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil
	}

	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

// NewFileSpanExporter opens (appending) the file at filePath
func NewFileSpanExporter(filePath string) (*FileSpanExporter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &FileSpanExporter{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// ExportSpans implements sdktrace.SpanExporter
func (f *FileSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, span := range spans {
		fs := FileSpan{
			TraceID:    span.SpanContext().TraceID().String(),
			SpanID:     span.SpanContext().SpanID().String(),
			Name:       span.Name(),
			StartTime:  span.StartTime(),
			EndTime:    span.EndTime(),
			Status:     span.Status().Code.String(),
			Attributes: make(map[string]any, len(span.Attributes())),
		}
		if span.Parent().IsValid() {
			fs.ParentID = span.Parent().SpanID().String()
		}
		for _, attr := range span.Attributes() {
			fs.Attributes[string(attr.Key)] = attr.Value.AsInterface()
		}
		for _, event := range span.Events() {
			ev := SpanEvent{Name: event.Name, Timestamp: event.Time}
			if len(event.Attributes) > 0 {
				ev.Attributes = make(map[string]any, len(event.Attributes))
				for _, attr := range event.Attributes {
					ev.Attributes[string(attr.Key)] = attr.Value.AsInterface()
				}
			}
			fs.Events = append(fs.Events, ev)
		}

		if err := f.encoder.Encode(fs); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter
func (f *FileSpanExporter) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// Tracer returns the tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a new span with the given name
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SetErrorStatus sets the status of the current span to Error
func SetErrorStatus(ctx context.Context, description string) {
	trace.SpanFromContext(ctx).SetStatus(codes.Error, description)
}

// SetOKStatus sets the status of the current span to OK
func SetOKStatus(ctx context.Context) {
	trace.SpanFromContext(ctx).SetStatus(codes.Ok, "")
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	trace.SpanFromContext(ctx).RecordError(err, opts...)
}

// CloseTracing flushes and shuts down the global tracer provider
func CloseTracing(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
