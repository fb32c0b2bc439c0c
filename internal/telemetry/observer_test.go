package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/adrelay/adrelay-go/sdk"
)

type observedEnv struct {
	client   *sdk.Client
	metrics  *ClientMetrics
	spans    *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
	requests *atomic.Int32
}

// newObservedEnv serves failures 503s before answering 200
func newObservedEnv(t *testing.T, failures int32) *observedEnv {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable","message":"try later","request_id":"req-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ad_id":"ad-1"}`))
	}))
	t.Cleanup(server.Close)

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tracing, err := NewTracingObserver(tp, mp)
	require.NoError(t, err)

	metrics := NewClientMetrics(prometheus.NewRegistry())

	config := sdk.DefaultConfig().
		WithBaseURL(server.URL).
		WithRetries(2).
		WithBackoff(sdk.ConstantBackoff(time.Millisecond)).
		WithObserver(sdk.NewCompositeObserver(NewMetricsObserver(metrics), tracing))

	client, err := sdk.NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &observedEnv{
		client:   client,
		metrics:  metrics,
		spans:    spans,
		reader:   reader,
		requests: &hits,
	}
}

func (e *observedEnv) retryCount(t *testing.T) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, e.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "adrelay.client.retries" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "api", outcome(&sdk.Error{Kind: sdk.KindAPI, StatusCode: 400}))
	assert.Equal(t, "timeout", outcome(&sdk.Error{Kind: sdk.KindTimeout}))
	assert.Equal(t, "network", outcome(&sdk.Error{Kind: sdk.KindNetwork}))
	assert.Equal(t, "other", outcome(sdk.ErrClientClosed))
}

func TestObserversRecordRetriedSuccess(t *testing.T) {
	env := newObservedEnv(t, 1)

	_, err := env.client.Decide(context.Background(), map[string]string{"placement": "home"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, env.requests.Load())

	t.Run("prometheus", func(t *testing.T) {
		m := env.metrics
		assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", sdk.DecidePath, "success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("POST", sdk.DecidePath, "503")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("POST", sdk.DecidePath, "200")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("POST", sdk.DecidePath, "api")))
		assert.Equal(t, 1, testutil.CollectAndCount(m.backoffDelay))
	})

	t.Run("span", func(t *testing.T) {
		ended := env.spans.Ended()
		require.Len(t, ended, 1)

		span := ended[0]
		assert.Equal(t, "POST /v1/decide", span.Name())
		assert.Equal(t, codes.Ok, span.Status().Code)

		var names []string
		for _, ev := range span.Events() {
			names = append(names, ev.Name)
		}
		assert.Equal(t, []string{"attempt", "retry", "attempt"}, names)
	})

	t.Run("otel counter", func(t *testing.T) {
		assert.EqualValues(t, 1, env.retryCount(t))
	})
}

func TestObserversRecordExhaustedFailure(t *testing.T) {
	env := newObservedEnv(t, 100)

	_, err := env.client.Decide(context.Background(), map[string]string{"placement": "home"})
	require.Error(t, err)
	assert.Equal(t, 503, sdk.StatusCode(err))
	assert.EqualValues(t, 3, env.requests.Load())

	m := env.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", sdk.DecidePath, "api")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.attempts.WithLabelValues("POST", sdk.DecidePath, "503")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retries.WithLabelValues("POST", sdk.DecidePath, "api")))

	ended := env.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "api", ended[0].Status().Description)

	assert.EqualValues(t, 2, env.retryCount(t))
}

func TestNewObserverLogsThroughGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)

	prev := L()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(prev) })

	observer, err := NewObserver(prometheus.NewRegistry())
	require.NoError(t, err)

	ctx := observer.OnRequestStart(context.Background(), "GET", "/health")
	observer.OnRequestEnd(ctx, "GET", "/health", time.Millisecond, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "/health", entry["path"])
}

func TestNewObserverWithoutRegistry(t *testing.T) {
	observer, err := NewObserver(nil)
	require.NoError(t, err)
	assert.NotNil(t, observer)
}
