package sdk

import (
	"context"
	"fmt"
	"net/http"
)

// Supported request methods.
const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost
)

// RequestOptions carries the optional parts of a request descriptor.
// The zero value (or nil) sends no body, no extra headers and no
// idempotency key.
//
// Example:
//
//	opts := &sdk.RequestOptions{
//	    Body:           map[string]any{"type": "impression", "ad_id": "ad_42"},
//	    Headers:        map[string]string{"X-Publisher-ID": "pub-123"},
//	    IdempotencyKey: "evt-7f9c",
//	}
type RequestOptions struct {
	// Body is serialized to JSON. A nil Body sends no request body at all.
	Body any

	// Headers are merged over the defaults for this call only.
	Headers map[string]string

	// IdempotencyKey is sent as the Idempotency-Key header and reused by
	// every retry of the call.
	IdempotencyKey string
}

// Request executes a request and decodes the successful JSON response into T.
// It is the generic entry point of the transport core; Go methods cannot
// take type parameters, so it is a function over *Client.
//
// The call makes up to MaxRetries+1 attempts. On failure the returned error
// is an *Error of exactly one Kind, taken from the last attempt.
//
// Example:
//
//	type Decision struct {
//	    AdID     string `json:"ad_id"`
//	    ClickURL string `json:"click_url"`
//	}
//
//	decision, err := sdk.Request[Decision](ctx, client, sdk.MethodPost, "/v1/decide",
//	    &sdk.RequestOptions{Body: opportunity})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(decision.AdID)
func Request[T any](ctx context.Context, c *Client, method, path string, opts *RequestOptions) (T, error) {
	var result T
	if err := c.Do(ctx, method, path, opts, &result); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Get is shorthand for Request with MethodGet and no body.
func Get[T any](ctx context.Context, c *Client, path string, headers map[string]string) (T, error) {
	return Request[T](ctx, c, MethodGet, path, &RequestOptions{Headers: headers})
}

// Post is shorthand for Request with MethodPost.
func Post[T any](ctx context.Context, c *Client, path string, body any, idempotencyKey string) (T, error) {
	return Request[T](ctx, c, MethodPost, path, &RequestOptions{
		Body:           body,
		IdempotencyKey: idempotencyKey,
	})
}

// checkMethod rejects methods outside the supported set
func checkMethod(method string) error {
	switch method {
	case MethodGet, MethodPost:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
}
