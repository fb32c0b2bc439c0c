package sdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "http://localhost:8080", config.BaseURL)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 2, config.MaxRetries)
	assert.Empty(t, config.APIKey)
	assert.False(t, config.AutoIdempotencyKeys)
	assert.Nil(t, config.RateLimit)
	assert.Equal(t, 100, config.TransportConfig.MaxIdleConns)
	assert.Equal(t, 10, config.TransportConfig.MaxConnsPerHost)
	assert.Equal(t, 90*time.Second, config.TransportConfig.IdleConnTimeout)
}

func TestConfigBuilders(t *testing.T) {
	observer := NewMetricsCollector()
	backoff := ConstantBackoff(time.Second)

	config := DefaultConfig().
		WithBaseURL("https://api.example.com").
		WithAPIKey("sk_test").
		WithTimeout(3*time.Second).
		WithRetries(5).
		WithHeader("X-Publisher-ID", "pub-1").
		WithBackoff(backoff).
		WithObserver(observer).
		WithRateLimit(20, 4).
		WithAutoIdempotencyKeys().
		WithUserAgent("custom/1.0")

	assert.Equal(t, "https://api.example.com", config.BaseURL)
	assert.Equal(t, "sk_test", config.APIKey)
	assert.Equal(t, 3*time.Second, config.Timeout)
	assert.Equal(t, 5, config.MaxRetries)
	assert.Equal(t, "pub-1", config.Headers["X-Publisher-ID"])
	assert.Equal(t, backoff, config.Backoff)
	assert.Same(t, observer, config.Observer)
	assert.Equal(t, &RateLimitConfig{RequestsPerSecond: 20, Burst: 4}, config.RateLimit)
	assert.True(t, config.AutoIdempotencyKeys)
	assert.Equal(t, "custom/1.0", config.UserAgent)
}

func TestConfigWithHeaderOnZeroValue(t *testing.T) {
	config := (&Config{}).WithHeader("X-A", "1")
	assert.Equal(t, map[string]string{"X-A": "1"}, config.Headers)
}

func TestConfigValidateDefaults(t *testing.T) {
	config := &Config{BaseURL: "http://localhost:9999", MaxRetries: -1}
	require.NoError(t, config.Validate())

	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 0, config.MaxRetries)
	assert.IsType(t, &ExponentialBackoff{}, config.Backoff)
	assert.IsType(t, &NoopObserver{}, config.Observer)
	assert.NotNil(t, config.Logger)
	assert.Equal(t, "adrelay-go/"+Version, config.UserAgent)
}

func TestConfigValidateErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"not a url", func(c *Config) { c.BaseURL = "not a url" }},
		{"unsupported scheme", func(c *Config) { c.BaseURL = "ftp://files.example.com" }},
		{"zero rate", func(c *Config) { c.WithRateLimit(0, 1) }},
		{"zero burst", func(c *Config) { c.WithRateLimit(10, 0) }},
		{"negative pool size", func(c *Config) { c.TransportConfig.MaxIdleConns = -1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigClone(t *testing.T) {
	original := DefaultConfig().WithHeader("X-A", "1").WithRateLimit(5, 1)
	cp := original.clone()

	cp.Headers["X-A"] = "2"
	cp.RateLimit.Burst = 9

	assert.Equal(t, "1", original.Headers["X-A"])
	assert.Equal(t, 1, original.RateLimit.Burst)
}
