package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Shutdown flushes exporters started by Init
type Shutdown func(ctx context.Context) error

// Init initializes all telemetry components
func Init(ctx context.Context, cfg *Config) (Shutdown, error) {
	InitLogger(cfg)

	if err := InitTracing(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	mp, err := InitMetrics(ctx, cfg)
	if err != nil {
		_ = CloseTracing(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	L().WithFields(map[string]interface{}{
		"service":      cfg.ServiceName,
		"version":      cfg.ServiceVersion,
		"environment":  cfg.Environment,
		"tracing":      cfg.EnableTracing,
		"metrics":      cfg.EnableMetrics,
		"exportToFile": cfg.ExportToFile,
	}).Debug("Telemetry initialized")

	return func(ctx context.Context) error {
		return shutdown(ctx, mp)
	}, nil
}

func shutdown(ctx context.Context, mp *sdkmetric.MeterProvider) error {
	var errs []error

	if err := CloseTracing(ctx); err != nil {
		L().WithError(err).Error("Failed to close tracing")
		errs = append(errs, err)
	}

	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			L().WithError(err).Error("Failed to close metrics")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// FiberMetricsMiddleware returns a Fiber middleware for recording HTTP metrics
func FiberMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx, span := StartSpan(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		// the error handler has not run yet, so take the status from the error
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		RecordHTTPRequest(c.Method(), routePattern(c), strconv.Itoa(status), time.Since(start))

		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Method()),
			semconv.HTTPTargetKey.String(c.Path()),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		switch {
		case err != nil:
			RecordError(ctx, err)
			SetErrorStatus(ctx, err.Error())
		case status >= 500:
			SetErrorStatus(ctx, fmt.Sprintf("HTTP %d", status))
		default:
			SetOKStatus(ctx)
		}

		return err
	}
}

// routePattern keeps metric cardinality bounded for unmatched paths
func routePattern(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "/" && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging
func FiberLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		entry := WithContext(c.UserContext()).WithFields(map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
			"request_id": c.Locals("requestid"),
		})

		if err != nil {
			entry.WithError(err).Warn("Request failed")
		} else if c.Response().StatusCode() >= 400 {
			entry.Warn("Request completed with error status")
		} else {
			entry.Info("Request completed")
		}

		return err
	}
}
