package sdk

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the configuration for the AdRelay client.
// Only BaseURL is required; everything else has a sensible default.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("https://api.adrelay.io").
//	    WithAPIKey(os.Getenv("ADRELAY_API_KEY")).
//	    WithTimeout(5 * time.Second).
//	    WithRetries(3)
//
//	client, err := sdk.NewClient(config)
//
// A Config is copied by NewClient; changing it afterwards does not affect
// existing clients.
type Config struct {
	// APIKey is sent as "Authorization: Bearer <APIKey>" when non-empty.
	APIKey string

	// BaseURL is prepended verbatim to every request path.
	// Default: "http://localhost:8080"
	BaseURL string `validate:"required,url"`

	// Timeout bounds each individual attempt, not the whole call.
	// Default: 10s
	Timeout time.Duration `validate:"gt=0"`

	// MaxRetries is the number of retries after the first attempt.
	// Set to 0 to disable retries.
	// Default: 2
	MaxRetries int `validate:"gte=0"`

	// Headers are added to every request. They cannot remove the
	// Content-Type default, only override its value.
	Headers map[string]string

	// Backoff decides the wait between attempts.
	// If nil, DefaultExponentialBackoff is used.
	Backoff Backoff `validate:"-"`

	// Observer receives request and retry notifications.
	// If nil, NoopObserver is used.
	Observer Observer `validate:"-"`

	// Logger receives retry diagnostics. If nil, logs are discarded.
	Logger logrus.FieldLogger `validate:"-"`

	// RateLimit enables a client-side token bucket shared by all calls.
	// If nil, requests are not throttled.
	RateLimit *RateLimitConfig `validate:"omitempty"`

	// AutoIdempotencyKeys generates an Idempotency-Key for POST calls that
	// do not supply one. The key is reused by every retry of the call.
	AutoIdempotencyKeys bool

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// TransportConfig holds HTTP connection pool settings.
	TransportConfig TransportConfig

	// HTTPClient replaces the HTTP client built from TransportConfig.
	// The client copies it and clears Timeout, so only the per-attempt
	// Timeout bounds an attempt.
	HTTPClient *http.Client `validate:"-"`
}

// RateLimitConfig configures client-side throttling.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRateLimit(50, 10) // 50 requests per second, bursts of 10
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64 `validate:"gt=0"`
	// Burst is the bucket size
	Burst int `validate:"gt=0"`
}

// TransportConfig holds HTTP transport configuration for connection pooling.
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int `validate:"gte=0"`

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int `validate:"gte=0"`

	// IdleConnTimeout is the maximum time an idle connection will remain idle
	// before closing itself. Zero means no limit.
	// Default: 90s
	IdleConnTimeout time.Duration `validate:"gte=0"`
}

// DefaultConfig returns a Config with sensible defaults:
//   - Base URL: http://localhost:8080
//   - Timeout: 10 seconds per attempt
//   - Retries: 2 (3 attempts in total)
//   - Backoff: 100ms * 2^n + up to 100ms jitter
//   - Connection pooling: 100 idle connections, 10 per host
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8080",
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:  make(map[string]string),
		Observer: &NoopObserver{},
	}
}

// WithBaseURL sets the base URL of the API.
// Paths are appended verbatim, so omit the trailing slash.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("https://api.adrelay.io")
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithAPIKey sets the bearer credential.
func (c *Config) WithAPIKey(key string) *Config {
	c.APIKey = key
	return c
}

// WithTimeout sets the deadline applied to each attempt.
// There is no cumulative deadline; pass a context with a deadline to bound
// the whole call including backoff waits.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetries sets the maximum number of retry attempts for failed requests.
// Set to 0 to disable automatic retries.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetries(5) // Up to 6 attempts
func (c *Config) WithRetries(maxRetries int) *Config {
	c.MaxRetries = maxRetries
	return c
}

// WithHeader adds a custom header to be sent with all requests.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithHeader("X-Publisher-ID", "pub-123")
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithBackoff sets the backoff policy.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithBackoff(&sdk.ExponentialBackoff{
//	        Base:     250 * time.Millisecond,
//	        Jitter:   250 * time.Millisecond,
//	        MaxDelay: 5 * time.Second,
//	    })
func (c *Config) WithBackoff(backoff Backoff) *Config {
	c.Backoff = backoff
	return c
}

// WithObserver sets a custom observer for monitoring SDK operations.
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithLogger sets the logger used for retry diagnostics.
//
// Example:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	config := sdk.DefaultConfig().WithLogger(logger)
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// WithRateLimit enables client-side token bucket throttling.
func (c *Config) WithRateLimit(requestsPerSecond float64, burst int) *Config {
	c.RateLimit = &RateLimitConfig{
		RequestsPerSecond: requestsPerSecond,
		Burst:             burst,
	}
	return c
}

// WithAutoIdempotencyKeys makes the client generate an Idempotency-Key for
// POST calls without one.
func (c *Config) WithAutoIdempotencyKeys() *Config {
	c.AutoIdempotencyKeys = true
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Config) WithUserAgent(userAgent string) *Config {
	c.UserAgent = userAgent
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Config) WithHTTPClient(client *http.Client) *Config {
	c.HTTPClient = client
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewClient.
//
// Returns an error wrapping ErrInvalidConfig if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff == nil {
		c.Backoff = DefaultExponentialBackoff()
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	if c.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		c.Logger = discard
	}
	if c.UserAgent == "" {
		c.UserAgent = "adrelay-go/" + Version
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, describeValidation(err))
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base URL must use http or https", ErrInvalidConfig)
	}
	return nil
}

// clone returns a copy that does not share the headers map
func (c *Config) clone() *Config {
	cp := *c
	cp.Headers = maps.Clone(c.Headers)
	if c.RateLimit != nil {
		rl := *c.RateLimit
		cp.RateLimit = &rl
	}
	return &cp
}

// describeValidation flattens validator errors into one line
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
