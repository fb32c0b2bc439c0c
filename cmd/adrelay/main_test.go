package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrelay/adrelay-go/internal/mockapi"
	"github.com/adrelay/adrelay-go/internal/telemetry"
	"github.com/adrelay/adrelay-go/sdk"
)

// startMockAPI serves the stub API on a random local port
func startMockAPI(t *testing.T, apiKey string) string {
	t.Helper()

	cfg := mockapi.DefaultConfig()
	cfg.APIKey = apiKey
	server := mockapi.NewServer(cfg, "test")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = server.App.Listener(ln) }()
	t.Cleanup(func() { _ = server.App.Shutdown() })

	return "http://" + ln.Addr().String()
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	t.Cleanup(func() { telemetry.SetLogger(nil) })

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"adrelay"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestDecideCommand(t *testing.T) {
	url := startMockAPI(t, "")

	res := runCLI(t, "", "--base-url", url, "decide", "--body", `{"placement":"sidebar"}`)
	require.Equal(t, exitOK, res.code, res.stderr)

	var decision map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &decision))
	assert.Equal(t, "sidebar", decision["placement"])
	assert.NotEmpty(t, decision["impression_id"])
}

func TestEventCommandWithBodyFile(t *testing.T) {
	url := startMockAPI(t, "")
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"click","ad_id":"ad-1"}`), 0o600))

	first := runCLI(t, "", "--base-url", url, "event", "--body", "@"+path, "--idempotency-key", "evt-1")
	require.Equal(t, exitOK, first.code, first.stderr)
	assert.Contains(t, first.stdout, `"duplicate": false`)

	second := runCLI(t, "", "--base-url", url, "event", "--body", "@"+path, "--idempotency-key", "evt-1")
	require.Equal(t, exitOK, second.code, second.stderr)
	assert.Contains(t, second.stdout, `"duplicate": true`)
}

func TestRequestCommandBodyFromStdin(t *testing.T) {
	url := startMockAPI(t, "")

	res := runCLI(t, `{"placement":"footer"}`, "--base-url", url, "request", "--body", "-", "post", sdk.DecidePath)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"placement": "footer"`)
}

func TestRequestCommandGet(t *testing.T) {
	url := startMockAPI(t, "")

	res := runCLI(t, "", "--base-url", url, "request", "GET", "/health")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"status": "healthy"`)
}

func TestRetriedFailureThenSuccess(t *testing.T) {
	url := startMockAPI(t, "")

	res := runCLI(t, "", "--base-url", url, "--verbose",
		"request",
		"--body", `{"placement":"sidebar"}`,
		"--idempotency-key", "flaky-1",
		"--header", mockapi.HeaderMockFailTimes+"=1",
		"POST", sdk.DecidePath,
	)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "retrying")
}

func TestExitCodes(t *testing.T) {
	url := startMockAPI(t, "secret")

	t.Run("terminal api error", func(t *testing.T) {
		res := runCLI(t, "", "--base-url", url, "decide", "--body", `{"placement":"sidebar"}`)
		assert.Equal(t, exitFailure, res.code)
		assert.Contains(t, res.stderr, "status=401")
		assert.Contains(t, res.stderr, "code=unauthorized")
	})

	t.Run("retryable error exhausted", func(t *testing.T) {
		t.Setenv("ADRELAY_API_KEY", "secret")
		res := runCLI(t, "", "--base-url", url, "--max-retries", "1",
			"request",
			"--body", `{"placement":"sidebar"}`,
			"--header", mockapi.HeaderMockStatus+"=503",
			"POST", sdk.DecidePath,
		)
		assert.Equal(t, exitRetryable, res.code)
		assert.Contains(t, res.stderr, "status=503")
		assert.Contains(t, res.stderr, "attempt=1")
	})

	t.Run("network error", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		closed := "http://" + ln.Addr().String()
		require.NoError(t, ln.Close())

		res := runCLI(t, "", "--base-url", closed, "--max-retries", "0", "request", "GET", "/health")
		assert.Equal(t, exitRetryable, res.code)
		assert.Contains(t, res.stderr, "error: network")
	})

	t.Run("usage errors", func(t *testing.T) {
		res := runCLI(t, "", "--base-url", url, "decide", "--body", `{not json`)
		assert.Equal(t, exitFailure, res.code)
		assert.Contains(t, res.stderr, "not valid JSON")

		res = runCLI(t, "", "--base-url", url, "request", "DELETE", "/v1/decide")
		assert.Equal(t, exitFailure, res.code)

		res = runCLI(t, "", "--base-url", url, "request", "GET")
		assert.Equal(t, exitFailure, res.code)

		res = runCLI(t, "", "--base-url", url, "request", "--header", "novalue", "GET", "/health")
		assert.Equal(t, exitFailure, res.code)
		assert.Contains(t, res.stderr, "want key=value")
	})
}

func TestConfigFileAndFlags(t *testing.T) {
	url := startMockAPI(t, "from-file")
	path := filepath.Join(t.TempDir(), "adrelay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key = "from-file"
base_url = "http://127.0.0.1:1"
max_retries = 0
`), 0o600))

	res := runCLI(t, "", "--config", path, "--base-url", url, "decide", "--body", `{"placement":"sidebar"}`)
	assert.Equal(t, exitOK, res.code, res.stderr)
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"X-A=1", " X-B = two "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "two"}, headers)

	headers, err = parseHeaders(nil)
	require.NoError(t, err)
	assert.Nil(t, headers)

	_, err = parseHeaders([]string{"=v"})
	assert.Error(t, err)
}
