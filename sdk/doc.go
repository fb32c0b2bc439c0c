// Package sdk provides the Go client library for the AdRelay ad decisioning
// and tracking API. At its core is a small transport that turns a request
// descriptor into a decoded JSON response or a single classified error,
// enforcing a per-attempt timeout and retrying transient failures with
// exponential backoff and jitter.
//
// # Features
//
// The SDK provides:
//   - Typed requests through the generic Request, Get and Post functions
//   - Independent deadline per attempt, bounded by the caller's context
//   - Automatic retries for timeouts, network failures and 408/429/5xx statuses
//   - Idempotency keys carried unchanged across retries
//   - A closed error taxonomy: API, network and timeout errors
//   - Optional client-side rate limiting
//   - Observer hooks for logging, metrics and tracing
//
// # Basic Usage
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/adrelay/adrelay-go/sdk"
//	)
//
//	func main() {
//	    client, err := sdk.NewClient(sdk.DefaultConfig().
//	        WithBaseURL("https://api.adrelay.io").
//	        WithAPIKey("sk_live_..."))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//
//	    ctx := context.Background()
//
//	    decision, err := client.Decide(ctx, map[string]any{
//	        "placement": "article-footer",
//	        "context":   "espresso machine reviews",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Printf("decision: %s", decision)
//
//	    _, err = client.TrackEvent(ctx, map[string]any{
//	        "type":  "impression",
//	        "ad_id": "ad_123",
//	    }, "imp-ad_123-request_9")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Configuration
//
// The SDK can be configured using a fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("https://api.adrelay.io").
//	    WithTimeout(3 * time.Second).
//	    WithRetries(4).
//	    WithHeader("X-Publisher-ID", "pub-42").
//	    WithRateLimit(50, 10).
//	    WithAutoIdempotencyKeys()
//
// Timeout applies to each attempt separately. A call makes at most
// MaxRetries+1 attempts; use a context deadline to bound the whole call.
//
// # Error Handling
//
// Every failed exchange returns an *Error of exactly one Kind:
//
//	_, err := client.Decide(ctx, opportunity)
//	if sdkErr, ok := sdk.AsError(err); ok {
//	    switch sdkErr.Kind {
//	    case sdk.KindAPI:
//	        log.Printf("status %d: %s (request %s)",
//	            sdkErr.StatusCode, sdkErr.Body.Message, sdkErr.Body.RequestID)
//	    case sdk.KindNetwork, sdk.KindTimeout:
//	        log.Printf("transient failure after %d attempts: %v", sdkErr.Attempt+1, err)
//	    }
//	}
//
// # Typed Requests
//
//	type Decision struct {
//	    AdID string `json:"ad_id"`
//	}
//
//	d, err := sdk.Post[Decision](ctx, client, "/v1/decide", opportunity, "")
//
// # Observability
//
// Monitor SDK operations using the Observer interface. NoopObserver can be
// embedded to implement only some hooks; CompositeObserver fans out to
// several observers.
//
//	metrics := sdk.NewMetricsCollector()
//	config.WithObserver(sdk.NewCompositeObserver(metrics, sdk.NewLogObserver(logger)))
package sdk

// Version is the SDK release, reported in the User-Agent header.
const Version = "0.4.0"
