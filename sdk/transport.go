package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxErrorBodySize bounds how much of a failure response is read
const maxErrorBodySize = 1 << 20

// httpTransport executes logical requests against the API.
// It owns request construction, per-attempt deadlines, retries and error
// classification. It holds no per-call state, so one transport serves any
// number of concurrent calls.
type httpTransport struct {
	// client is the underlying HTTP client
	client *http.Client
	// config is the client's private copy of the configuration
	config *Config
	// limiter throttles attempts when rate limiting is configured
	limiter *rate.Limiter
	// observer for monitoring operations
	observer Observer
	// logger for retry diagnostics
	logger logrus.FieldLogger
	// sleep waits between attempts; replaced in tests
	sleep sleepFunc
}

// newHTTPTransport creates a transport from a validated config
func newHTTPTransport(config *Config) *httpTransport {
	var client *http.Client
	if config.HTTPClient != nil {
		// Attempts are bounded by config.Timeout alone
		c := *config.HTTPClient
		c.Timeout = 0
		client = &c
	} else {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        config.TransportConfig.MaxIdleConns,
				MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
				IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if config.RateLimit != nil {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit.RequestsPerSecond), config.RateLimit.Burst)
	}

	return &httpTransport{
		client:   client,
		config:   config,
		limiter:  limiter,
		observer: config.Observer,
		logger:   config.Logger,
		sleep:    sleepContext,
	}
}

// preparedRequest is the immutable descriptor shared by all attempts of a call
type preparedRequest struct {
	method  string
	path    string
	url     string
	body    []byte
	headers http.Header
}

// prepare builds the request descriptor once per logical call
func (t *httpTransport) prepare(method, path string, opts *RequestOptions) (*preparedRequest, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	var body []byte
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", t.config.UserAgent)
	mergeHeaders(headers, t.config.Headers)
	mergeHeaders(headers, opts.Headers)

	if t.config.APIKey != "" {
		headers.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	idempotencyKey := opts.IdempotencyKey
	if idempotencyKey == "" && method == http.MethodPost && t.config.AutoIdempotencyKeys {
		idempotencyKey = uuid.NewString()
	}
	if idempotencyKey != "" {
		headers.Set("Idempotency-Key", idempotencyKey)
	}

	return &preparedRequest{
		method:  method,
		path:    path,
		url:     t.config.BaseURL + path,
		body:    body,
		headers: headers,
	}, nil
}

// mergeHeaders copies extra into dst. An empty Content-Type is ignored so
// the JSON default can be overridden but never removed.
func mergeHeaders(dst http.Header, extra map[string]string) {
	for key, value := range extra {
		if value == "" && http.CanonicalHeaderKey(key) == "Content-Type" {
			continue
		}
		dst.Set(key, value)
	}
}

// do executes one logical request with retry logic and decodes the
// successful response into result (which may be nil).
func (t *httpTransport) do(ctx context.Context, method, path string, opts *RequestOptions, result any) error {
	req, err := t.prepare(method, path, opts)
	if err != nil {
		return err
	}

	ctx = t.observer.OnRequestStart(ctx, method, path)
	start := time.Now()

	executor := newRetryExecutor(t.config.MaxRetries, t.config.Backoff)
	executor.sleep = t.sleep
	executor.onRetry = func(attempt int, delay time.Duration, err error) {
		t.logger.WithFields(logrus.Fields{
			"method":     method,
			"path":       path,
			"attempt":    attempt,
			"delay":      delay.String(),
			"error_kind": errorKind(err),
		}).WithError(err).Debug("retrying request")
		t.observer.OnRetryAttempt(ctx, method, path, attempt, delay, err)
	}

	finalErr := executor.Execute(ctx, func(attempt int) error {
		attemptStart := time.Now()
		status, err := t.attempt(ctx, req, result)
		if sdkErr, ok := AsError(err); ok {
			sdkErr.Method = method
			sdkErr.URL = req.url
			sdkErr.Attempt = attempt
		}
		t.observer.OnAttemptEnd(ctx, method, path, attempt, status, time.Since(attemptStart), err)
		return err
	})

	if sdkErr, ok := AsError(finalErr); ok {
		sdkErr.Method = method
		sdkErr.URL = req.url
		t.logger.WithFields(logrus.Fields{
			"method":      method,
			"path":        path,
			"attempt":     sdkErr.Attempt,
			"error_kind":  sdkErr.Kind.String(),
			"status_code": sdkErr.StatusCode,
		}).WithError(finalErr).Debug("request failed")
	}

	t.observer.OnRequestEnd(ctx, method, path, time.Since(start), finalErr)
	return finalErr
}

// attempt performs a single HTTP exchange bounded by the per-attempt
// timeout. It returns the response status (0 if none) and a classified
// error on failure.
func (t *httpTransport) attempt(ctx context.Context, req *preparedRequest, result any) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.Wait(attemptCtx); err != nil {
			return 0, newTimeoutError(fmt.Errorf("rate limiter: %w", err))
		}
	}

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, req.url, bodyReader)
	if err != nil {
		return 0, newNetworkError(networkErrorMessage, err)
	}
	httpReq.Header = req.headers.Clone()

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return 0, classifyTransportError(attemptCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if err != nil && attemptCtx.Err() != nil {
			return resp.StatusCode, newTimeoutError(err)
		}
		return resp.StatusCode, newAPIError(resp.StatusCode, parseErrorBody(data))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, classifyTransportError(attemptCtx, err)
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := decodeInto(data, result); err != nil {
			return resp.StatusCode, newNetworkError(decodeErrorMessage, err)
		}
	}
	return resp.StatusCode, nil
}

// decodeInto unmarshals data into a fresh value and only assigns it to
// result when decoding succeeds, so a failed attempt leaves result untouched.
func decodeInto(data []byte, result any) error {
	dst := reflect.ValueOf(result)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return json.Unmarshal(data, result)
	}

	fresh := reflect.New(dst.Type().Elem())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return err
	}
	dst.Elem().Set(fresh.Elem())
	return nil
}

// classifyTransportError maps a failed exchange to a timeout error when the
// attempt's context ended, and to a network error otherwise.
func classifyTransportError(attemptCtx context.Context, err error) error {
	if attemptCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return newTimeoutError(err)
	}
	return newNetworkError(networkErrorMessage, err)
}

// parseErrorBody decodes a structured failure body, substituting the
// unknown_error document when it is absent or not valid JSON.
func parseErrorBody(data []byte) ErrorBody {
	var body ErrorBody
	if len(bytes.TrimSpace(data)) == 0 {
		return unknownErrorBody()
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return unknownErrorBody()
	}
	return body
}

// errorKind labels err for logs and metrics
func errorKind(err error) string {
	if sdkErr, ok := AsError(err); ok {
		return sdkErr.Kind.String()
	}
	if err != nil {
		return "other"
	}
	return "none"
}

// close releases idle connections
func (t *httpTransport) close() {
	t.client.CloseIdleConnections()
}
