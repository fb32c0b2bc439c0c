package sdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrelay/adrelay-go/sdk/internal/sdktest"
)

// testEnv bundles a scripted server with a client pointed at it
type testEnv struct {
	server *sdktest.MockServer
	client *Client
	waits  *noSleep
}

// newTestEnv starts a mock server and a client whose backoff waits are
// recorded instead of slept. configure may adjust the config before the
// client is built.
func newTestEnv(t *testing.T, configure func(*Config)) *testEnv {
	t.Helper()

	server := sdktest.NewMockServer()
	t.Cleanup(server.Close)

	config := DefaultConfig().
		WithBaseURL(server.URL).
		WithTimeout(2 * time.Second)
	if configure != nil {
		configure(config)
	}

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	waits := &noSleep{}
	client.transport.sleep = waits.sleep

	return &testEnv{server: server, client: client, waits: waits}
}

// requireKind asserts err is an *Error of the given kind and returns it
func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	sdkErr, ok := AsError(err)
	require.True(t, ok, "expected *sdk.Error, got %T: %v", err, err)
	require.Equal(t, kind, sdkErr.Kind, "unexpected kind: %v", err)
	return sdkErr
}

// assertAPIError checks status and body of an API error
func assertAPIError(t *testing.T, err error, status int, body ErrorBody) {
	t.Helper()
	sdkErr := requireKind(t, err, KindAPI)
	assert.Equal(t, status, sdkErr.StatusCode)
	assert.Equal(t, body, sdkErr.Body)
}
