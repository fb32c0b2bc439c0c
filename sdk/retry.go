package sdk

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// retryableStatusCodes is the set of API status codes worth replaying.
// Any other failure status means the request itself is wrong and will not
// succeed on replay.
var retryableStatusCodes = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// IsRetryableStatus reports whether an API error with this status is retried.
func IsRetryableStatus(code int) bool {
	_, ok := retryableStatusCodes[code]
	return ok
}

// shouldRetry is the retry predicate. attempt is zero-indexed, so a call
// makes at most maxRetries+1 attempts.
func shouldRetry(err error, attempt, maxRetries int) bool {
	if attempt >= maxRetries {
		return false
	}
	return IsRetryable(err)
}

// Backoff computes the delay inserted between attempts.
//
// The SDK ships ExponentialBackoff (the default) and ConstantBackoff.
// Custom policies only need to implement Delay:
//
//	type Linear struct{ Step time.Duration }
//
//	func (l Linear) Delay(attempt int) time.Duration {
//	    return time.Duration(attempt+1) * l.Step
//	}
type Backoff interface {
	// Delay returns the wait before the next attempt. attempt is the
	// zero-indexed attempt that just failed.
	Delay(attempt int) time.Duration
}

// BackoffFunc adapts a plain function to the Backoff interface
type BackoffFunc func(attempt int) time.Duration

// Delay calls f(attempt)
func (f BackoffFunc) Delay(attempt int) time.Duration {
	return f(attempt)
}

// ExponentialBackoff implements exponential backoff with additive jitter.
//
// The delay after failed attempt n is:
//
//	Base * 2^n + uniform[0, Jitter)
//
// With the defaults (100ms, 100ms) the waits fall in [100ms, 200ms),
// [200ms, 300ms), [400ms, 500ms), ...
type ExponentialBackoff struct {
	// Base is the delay after the first failed attempt, before jitter
	Base time.Duration

	// Jitter is the exclusive upper bound of the random delay added to
	// every wait. Zero disables jitter.
	Jitter time.Duration

	// MaxDelay caps the exponential part. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultExponentialBackoff returns the backoff used when none is configured:
//   - Base: 100ms
//   - Jitter: 100ms
//   - MaxDelay: none
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Jitter: 100 * time.Millisecond,
	}
}

// Delay calculates the wait after the given failed attempt
func (b *ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 62 {
		attempt = 62
	}

	// Saturate instead of letting the shift wrap negative
	delay := time.Duration(math.MaxInt64)
	if b.Base <= time.Duration(math.MaxInt64>>uint(attempt)) {
		delay = b.Base << uint(attempt)
	}
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}

	if b.Jitter > 0 {
		jitter := rand.N(b.Jitter)
		if delay > time.Duration(math.MaxInt64)-jitter {
			return time.Duration(math.MaxInt64)
		}
		delay += jitter
	}
	return delay
}

// ConstantBackoff waits the same interval between every attempt.
// Mostly useful in tests and for callers that manage load themselves.
type ConstantBackoff time.Duration

// Delay returns the constant interval
func (c ConstantBackoff) Delay(int) time.Duration {
	return time.Duration(c)
}

// sleepFunc waits for d or until ctx is done
type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default sleepFunc
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryExecutor runs one logical call with bounded, sequential retries.
type retryExecutor struct {
	maxRetries int
	backoff    Backoff
	sleep      sleepFunc
	// onRetry is called after a retryable failure, before the wait
	onRetry func(attempt int, delay time.Duration, err error)
}

// newRetryExecutor creates a retry executor
func newRetryExecutor(maxRetries int, backoff Backoff) *retryExecutor {
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	return &retryExecutor{
		maxRetries: maxRetries,
		backoff:    backoff,
		sleep:      sleepContext,
	}
}

// Execute runs fn for attempt 0..maxRetries until it succeeds or a
// terminal error occurs. The error of the last attempt is returned.
func (re *retryExecutor) Execute(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= re.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			timeoutErr := newTimeoutError(err)
			timeoutErr.Attempt = attempt
			return timeoutErr
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err, attempt, re.maxRetries) {
			return err
		}

		delay := re.backoff.Delay(attempt)
		if re.onRetry != nil {
			re.onRetry(attempt, delay, err)
		}

		if err := re.sleep(ctx, delay); err != nil {
			timeoutErr := newTimeoutError(err)
			timeoutErr.Attempt = attempt
			return timeoutErr
		}
	}

	return lastErr
}
