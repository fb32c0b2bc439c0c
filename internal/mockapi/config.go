package mockapi

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the stub API configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// APIKey enables bearer authentication on /v1 routes when set
	APIKey string

	// Timeouts, in seconds
	RequestTimeout  int
	ShutdownTimeout int

	// MaxDelay caps X-Mock-Delay
	MaxDelay time.Duration

	// Idempotency records older than IdempotencyTTL are dropped every
	// CleanupInterval
	IdempotencyTTL  time.Duration
	CleanupInterval time.Duration

	// Telemetry configuration
	MetricsPath string
}

// DefaultConfig returns the configuration used when no env is set
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		RequestTimeout:  30,
		ShutdownTimeout: 10,
		MaxDelay:        30 * time.Second,
		IdempotencyTTL:  24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
		MetricsPath:     "/metrics",
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	port, err := strconv.Atoi(getEnvOrDefault("PORT", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	requestTimeout, err := strconv.Atoi(getEnvOrDefault("REQUEST_TIMEOUT", strconv.Itoa(cfg.RequestTimeout)))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := strconv.Atoi(getEnvOrDefault("SHUTDOWN_TIMEOUT", strconv.Itoa(cfg.ShutdownTimeout)))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	maxDelay, err := time.ParseDuration(getEnvOrDefault("MAX_DELAY", cfg.MaxDelay.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_DELAY: %w", err)
	}

	cfg.IdempotencyTTL = getEnvDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", cfg.CleanupInterval)

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = port
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.RequestTimeout = requestTimeout
	cfg.ShutdownTimeout = shutdownTimeout
	cfg.MaxDelay = maxDelay
	cfg.MetricsPath = getEnvOrDefault("METRICS_PATH", cfg.MetricsPath)

	return cfg, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment or returns default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
