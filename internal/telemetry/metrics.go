package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	// HTTP server metrics, shared by every fiber app in the process
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ClientMetrics holds the Prometheus collectors describing outbound SDK
// traffic.
type ClientMetrics struct {
	requests        *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attemptDuration *prometheus.HistogramVec
	backoffDelay    prometheus.Histogram
}

// NewClientMetrics registers the client collectors with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)

	return &ClientMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adrelay_client_requests_total",
			Help: "Logical SDK requests by final outcome",
		}, []string{"method", "path", "outcome"}),

		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adrelay_client_attempts_total",
			Help: "HTTP attempts by response status (0 when none was received)",
		}, []string{"method", "path", "status"}),

		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adrelay_client_retries_total",
			Help: "Retries by the kind of error that triggered them",
		}, []string{"method", "path", "error_kind"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adrelay_client_request_duration_seconds",
			Help:    "Duration of logical requests including backoff waits",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path"}),

		attemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adrelay_client_attempt_duration_seconds",
			Help:    "Duration of individual HTTP attempts",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		backoffDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adrelay_client_backoff_delay_seconds",
			Help:    "Backoff delay chosen before each retry",
			Buckets: []float64{.1, .2, .4, .8, 1.6, 3.2, 6.4},
		}),
	}
}

// InitMetrics installs a global OpenTelemetry meter provider exporting
// over OTLP/gRPC. It is a no-op when metrics are disabled or exported to
// file. The returned provider must be shut down to flush.
func InitMetrics(ctx context.Context, cfg *Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.EnableMetrics || cfg.ExportToFile {
		return nil, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(cfg.MetricsInterval)*time.Second),
			),
		),
	)

	otel.SetMeterProvider(provider)
	return provider, nil
}
