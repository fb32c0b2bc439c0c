package sdk

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrelay/adrelay-go/sdk/internal/sdktest"
)

type ctxKey struct{}

// recordingObserver captures every hook invocation
type recordingObserver struct {
	mu       sync.Mutex
	starts   int
	attempts []int
	statuses []int
	retries  []time.Duration
	ends     []error
	ctxSeen  []any
}

func (r *recordingObserver) OnRequestStart(ctx context.Context, method, path string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return context.WithValue(ctx, ctxKey{}, "span-1")
}

func (r *recordingObserver) OnAttemptEnd(ctx context.Context, method, path string, attempt, statusCode int, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	r.statuses = append(r.statuses, statusCode)
	r.ctxSeen = append(r.ctxSeen, ctx.Value(ctxKey{}))
}

func (r *recordingObserver) OnRetryAttempt(ctx context.Context, method, path string, attempt int, delay time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, delay)
}

func (r *recordingObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, err)
	r.ctxSeen = append(r.ctxSeen, ctx.Value(ctxKey{}))
}

type panickingObserver struct{ NoopObserver }

func (panickingObserver) OnRequestStart(ctx context.Context, method, path string) context.Context {
	panic("observer bug")
}

func (panickingObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	panic("observer bug")
}

func TestObserverHooks(t *testing.T) {
	rec := &recordingObserver{}
	env := newTestEnv(t, func(c *Config) {
		c.WithObserver(rec).WithBackoff(ConstantBackoff(7 * time.Millisecond))
	})
	env.server.FailThenSucceed("POST /v1/decide", 2, http.StatusInternalServerError, sdktest.Fixtures.Decision)

	_, err := env.client.Decide(context.Background(), sdktest.Fixtures.Opportunity)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.starts)
	assert.Equal(t, []int{0, 1, 2}, rec.attempts)
	assert.Equal(t, []int{500, 500, 200}, rec.statuses)
	assert.Equal(t, []time.Duration{7 * time.Millisecond, 7 * time.Millisecond}, rec.retries)
	assert.Equal(t, []error{nil}, rec.ends)
	for _, v := range rec.ctxSeen {
		assert.Equal(t, "span-1", v, "hooks should see the context returned by OnRequestStart")
	}
}

func TestObserverSeesFinalError(t *testing.T) {
	rec := &recordingObserver{}
	env := newTestEnv(t, func(c *Config) { c.WithObserver(rec).WithRetries(0) })
	env.server.Always("POST /v1/events", http.StatusUnprocessableEntity, sdktest.ErrorBody("invalid_event", "missing ad_id", "r"))

	_, err := env.client.TrackEvent(context.Background(), map[string]any{"type": "click"}, "")
	require.Error(t, err)

	require.Len(t, rec.ends, 1)
	assert.True(t, IsAPIError(rec.ends[0]))
	assert.Empty(t, rec.retries)
}

func TestMetricsCollector(t *testing.T) {
	metrics := NewMetricsCollector()
	env := newTestEnv(t, func(c *Config) { c.WithObserver(metrics).WithRetries(1) })
	env.server.FailThenSucceed("POST /v1/decide", 1, http.StatusBadGateway, sdktest.Fixtures.Decision)
	env.server.Always("POST /v1/events", http.StatusServiceUnavailable, sdktest.ErrorBody("down", "down", "r"))

	_, err := env.client.Decide(context.Background(), sdktest.Fixtures.Opportunity)
	require.NoError(t, err)
	_, err = env.client.TrackEvent(context.Background(), sdktest.Fixtures.Click, "k")
	require.Error(t, err)

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Requests["POST /v1/decide"])
	assert.Equal(t, int64(1), snapshot.Requests["POST /v1/events"])
	assert.Equal(t, int64(2), snapshot.Attempts["POST /v1/decide"])
	assert.Equal(t, int64(2), snapshot.Attempts["POST /v1/events"])
	assert.Equal(t, int64(1), snapshot.Retries["POST /v1/decide"])
	assert.Equal(t, int64(1), snapshot.Retries["POST /v1/events"])
	assert.Len(t, snapshot.RetryDelays["POST /v1/decide"], 1)
	assert.Len(t, snapshot.Latencies["POST /v1/decide"], 1)
	assert.Equal(t, map[string]int64{"api": 1}, snapshot.Errors)

	// Snapshot is a copy
	snapshot.Requests["POST /v1/decide"] = 99
	assert.Equal(t, int64(1), metrics.Snapshot().Requests["POST /v1/decide"])
}

func TestCompositeObserver(t *testing.T) {
	rec := &recordingObserver{}
	metrics := NewMetricsCollector()
	composite := NewCompositeObserver(panickingObserver{}, rec, metrics)

	ctx := composite.OnRequestStart(context.Background(), "GET", "/v1/thing")
	assert.Equal(t, "span-1", ctx.Value(ctxKey{}))

	composite.OnAttemptEnd(ctx, "GET", "/v1/thing", 0, 503, time.Millisecond, errors.New("x"))
	composite.OnRetryAttempt(ctx, "GET", "/v1/thing", 0, time.Millisecond, errors.New("x"))
	assert.NotPanics(t, func() {
		composite.OnRequestEnd(ctx, "GET", "/v1/thing", time.Millisecond, nil)
	})

	assert.Equal(t, 1, rec.starts)
	assert.Len(t, rec.ends, 1)
	assert.Equal(t, int64(1), metrics.Snapshot().Attempts["GET /v1/thing"])
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	obs := NewLogObserver(logger)
	ctx := obs.OnRequestStart(context.Background(), "POST", "/v1/events")

	obs.OnRetryAttempt(ctx, "POST", "/v1/events", 0, 150*time.Millisecond, newTimeoutError(context.DeadlineExceeded))
	assert.Contains(t, buf.String(), `"error_kind":"timeout"`)
	assert.Contains(t, buf.String(), `"delay_ms":150`)

	buf.Reset()
	obs.OnRequestEnd(ctx, "POST", "/v1/events", time.Second, newAPIError(400, unknownErrorBody()))
	assert.Contains(t, buf.String(), `"level":"warning"`)
	assert.Contains(t, buf.String(), `"error_kind":"api"`)

	buf.Reset()
	obs.OnRequestEnd(ctx, "POST", "/v1/events", time.Second, nil)
	assert.Contains(t, buf.String(), "request completed")
}

func TestTransportLogsRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	env := newTestEnv(t, func(c *Config) { c.WithLogger(logger).WithRetries(1) })
	env.server.Always("GET /v1/thing", http.StatusTooManyRequests, sdktest.ErrorBody("rate_limited", "slow down", "r"))

	_, err := Get[map[string]any](context.Background(), env.client, "/v1/thing", nil)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "retrying request")
	assert.Contains(t, out, "request failed")
	assert.Contains(t, out, `"path":"/v1/thing"`)
}
