package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// API paths used by the convenience methods.
const (
	DecidePath = "/v1/decide"
	EventsPath = "/v1/events"
)

// Client is an AdRelay API client. All methods are safe for concurrent use;
// concurrent calls share nothing but the read-only configuration, the
// connection pool and, when enabled, the rate limiter.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().
//	    WithBaseURL("https://api.adrelay.io").
//	    WithAPIKey(apiKey))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	decision, err := client.Decide(ctx, map[string]any{
//	    "placement": "sidebar",
//	    "context":   "running shoes for trail",
//	})
type Client struct {
	transport *httpTransport
	config    *Config
	closed    atomic.Bool
}

// NewClient creates a new client with the provided configuration.
// If config is nil, default configuration values will be used.
// The config is validated and copied; later changes to it have no effect.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	cfg := config.clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		transport: newHTTPTransport(cfg),
		config:    cfg,
	}, nil
}

// Do executes a request and decodes a successful JSON response into dest.
// dest may be nil to discard the response body.
//
// Errors produced by the exchange are *Error values of a single Kind.
// Errors that prevent any attempt (closed client, unsupported method,
// unmarshalable body) are returned as plain wrapped errors.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions, dest any) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if err := checkMethod(method); err != nil {
		return err
	}
	return c.transport.do(ctx, method, path, opts, dest)
}

// Decide requests an ad decision for an opportunity.
// The opportunity and the returned decision are opaque JSON documents owned
// by the decision service.
func (c *Client) Decide(ctx context.Context, opportunity any) (json.RawMessage, error) {
	if opportunity == nil {
		return nil, fmt.Errorf("opportunity cannot be nil")
	}
	return Request[json.RawMessage](ctx, c, MethodPost, DecidePath, &RequestOptions{Body: opportunity})
}

// TrackEvent reports an impression, click or conversion event.
// Supplying an idempotencyKey lets the server deduplicate retried writes.
func (c *Client) TrackEvent(ctx context.Context, event any, idempotencyKey string) (json.RawMessage, error) {
	if event == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}
	return Request[json.RawMessage](ctx, c, MethodPost, EventsPath, &RequestOptions{
		Body:           event,
		IdempotencyKey: idempotencyKey,
	})
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return *c.config.clone()
}

// Close closes the client and releases idle connections.
// After calling Close, requests fail with ErrClientClosed.
// Close is safe to call multiple times.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.transport.close()
	}
	return nil
}

// checkClosed checks if the client is closed
func (c *Client) checkClosed() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}
