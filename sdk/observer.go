package sdk

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Observer provides hooks for monitoring SDK operations.
// Implement this interface to track latencies and retry rates, or to
// integrate with your observability stack.
//
// Observer methods are called synchronously on the request path, so they
// should be fast and non-blocking.
//
// Example implementation:
//
//	type PrintObserver struct{ sdk.NoopObserver }
//
//	func (PrintObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
//	    log.Printf("retrying %s %s after attempt %d in %v: %v", method, path, attempt, delay, err)
//	}
//
//	config := sdk.DefaultConfig().WithObserver(PrintObserver{})
type Observer interface {
	// OnRequestStart is called once per logical request before the first
	// attempt. The returned context is used for the rest of the call, which
	// lets tracing observers attach a span.
	OnRequestStart(ctx context.Context, method, path string) context.Context

	// OnAttemptEnd is called after every attempt.
	//
	// Parameters:
	//   - attempt: zero-indexed attempt number
	//   - statusCode: HTTP status, 0 when no response was received
	//   - duration: time taken by this attempt
	//   - err: classified error, nil on success
	OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error)

	// OnRetryAttempt is called when a failed attempt will be retried,
	// before the backoff wait.
	//
	// Parameters:
	//   - attempt: the zero-indexed attempt that failed
	//   - delay: backoff delay before the next attempt
	//   - err: the error that triggered the retry
	OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error)

	// OnRequestEnd is called once per logical request with the final outcome.
	OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error)
}

// NoopObserver is a no-op implementation of Observer that does nothing.
// This is the default observer used when none is configured.
// Embed it to implement only the hooks you need.
type NoopObserver struct{}

// OnRequestStart returns ctx unchanged
func (NoopObserver) OnRequestStart(ctx context.Context, method, path string) context.Context {
	return ctx
}

// OnAttemptEnd does nothing
func (NoopObserver) OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error) {
}

// OnRetryAttempt does nothing
func (NoopObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
}

// OnRequestEnd does nothing
func (NoopObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
}

// LogObserver writes request outcomes to a logrus logger.
// Successful requests are logged at Debug, retries at Info and final
// failures at Warn.
//
// Example:
//
//	logger := logrus.New()
//	config := sdk.DefaultConfig().
//	    WithObserver(sdk.NewLogObserver(logger))
type LogObserver struct {
	NoopObserver
	logger logrus.FieldLogger
}

// NewLogObserver creates an observer logging to logger
func NewLogObserver(logger logrus.FieldLogger) *LogObserver {
	return &LogObserver{logger: logger}
}

// OnRetryAttempt logs the retry decision
func (o *LogObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
	o.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"attempt":    attempt,
		"delay_ms":   delay.Milliseconds(),
		"error_kind": errorKind(err),
	}).WithError(err).Info("request attempt failed, retrying")
}

// OnRequestEnd logs the final outcome
func (o *LogObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	entry := o.logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithField("error_kind", errorKind(err)).WithError(err).Warn("request failed")
		return
	}
	entry.Debug("request completed")
}

// MetricsCollector is a simple in-memory metrics implementation.
// It collects request counts, attempt counts, latencies, retries and
// errors by kind, keyed by "METHOD path".
//
// Note: This implementation stores all data in memory and is primarily
// intended for debugging and testing. For production use, export metrics
// to your monitoring system with a dedicated Observer.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	config := sdk.DefaultConfig().WithObserver(metrics)
//
//	snapshot := metrics.Snapshot()
//	fmt.Printf("retries: %v\n", snapshot.Retries)
type MetricsCollector struct {
	NoopObserver

	mu           sync.RWMutex
	requestCount map[string]int64
	attemptCount map[string]int64
	latencies    map[string][]time.Duration
	retryCount   map[string]int64
	retryDelays  map[string][]time.Duration
	errorCount   map[string]int64
}

// MetricsSnapshot is a point-in-time copy of collected metrics
type MetricsSnapshot struct {
	Requests    map[string]int64
	Attempts    map[string]int64
	Latencies   map[string][]time.Duration
	Retries     map[string]int64
	RetryDelays map[string][]time.Duration
	// Errors is keyed by error kind ("api", "network", "timeout", "other")
	Errors map[string]int64
}

// NewMetricsCollector creates a new metrics collector for tracking SDK operations.
// The collector is thread-safe and can be used concurrently.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount: make(map[string]int64),
		attemptCount: make(map[string]int64),
		latencies:    make(map[string][]time.Duration),
		retryCount:   make(map[string]int64),
		retryDelays:  make(map[string][]time.Duration),
		errorCount:   make(map[string]int64),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(ctx context.Context, method, path string) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[method+" "+path]++
	return ctx
}

// OnAttemptEnd increments attempt count
func (m *MetricsCollector) OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attemptCount[method+" "+path]++
}

// OnRetryAttempt records the retry and its delay
func (m *MetricsCollector) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.retryCount[key]++
	m.retryDelays[key] = append(m.retryDelays[key], delay)
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[errorKind(err)]++
	}
}

// Snapshot returns a copy of current metrics, safe to read without locks.
func (m *MetricsCollector) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		Requests:    copyCounts(m.requestCount),
		Attempts:    copyCounts(m.attemptCount),
		Latencies:   copyDurations(m.latencies),
		Retries:     copyCounts(m.retryCount),
		RetryDelays: copyDurations(m.retryDelays),
		Errors:      copyCounts(m.errorCount),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyDurations(src map[string][]time.Duration) map[string][]time.Duration {
	dst := make(map[string][]time.Duration, len(src))
	for k, v := range src {
		dst[k] = append([]time.Duration(nil), v...)
	}
	return dst
}

// CompositeObserver allows multiple observers to be combined into one.
// All observer methods are called on each child observer in order.
// If an observer panics, it's caught to prevent affecting other observers.
//
// Example:
//
//	observer := sdk.NewCompositeObserver(
//	    sdk.NewLogObserver(logger),
//	    sdk.NewMetricsCollector(),
//	)
//
//	config := sdk.DefaultConfig().WithObserver(observer)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

// OnRequestStart threads the context through every observer in order
func (c *CompositeObserver) OnRequestStart(ctx context.Context, method, path string) context.Context {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			if next := obs.OnRequestStart(ctx, method, path); next != nil {
				ctx = next
			}
		}()
	}
	return ctx
}

// OnAttemptEnd notifies all observers
func (c *CompositeObserver) OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error) {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			obs.OnAttemptEnd(ctx, method, path, attempt, statusCode, duration, err)
		}()
	}
}

// OnRetryAttempt notifies all observers
func (c *CompositeObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			obs.OnRetryAttempt(ctx, method, path, attempt, delay, err)
		}()
	}
}

// OnRequestEnd notifies all observers of request completion
func (c *CompositeObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			obs.OnRequestEnd(ctx, method, path, duration, err)
		}()
	}
}
