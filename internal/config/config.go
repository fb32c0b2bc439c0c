// Package config loads client settings for the adrelay CLI from an
// optional TOML file and ADRELAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/adrelay/adrelay-go/sdk"
)

// Environment variables overriding file values
const (
	EnvAPIKey     = "ADRELAY_API_KEY"
	EnvBaseURL    = "ADRELAY_BASE_URL"
	EnvTimeout    = "ADRELAY_TIMEOUT"
	EnvMaxRetries = "ADRELAY_MAX_RETRIES"
)

// File is the on-disk configuration format.
//
//	api_key = "sk-live-..."
//	base_url = "https://api.adrelay.io"
//	timeout = "5s"
//	max_retries = 3
//	auto_idempotency_keys = true
//
//	[headers]
//	X-Tenant = "acme"
//
//	[rate_limit]
//	requests_per_second = 20
//	burst = 5
type File struct {
	APIKey              string            `toml:"api_key"`
	BaseURL             string            `toml:"base_url"`
	Timeout             Duration          `toml:"timeout"`
	MaxRetries          *int              `toml:"max_retries"`
	AutoIdempotencyKeys bool              `toml:"auto_idempotency_keys"`
	Headers             map[string]string `toml:"headers"`
	RateLimit           *RateLimit        `toml:"rate_limit"`
}

// RateLimit is the [rate_limit] table
type RateLimit struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Duration decodes TOML strings such as "250ms"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Load builds an SDK config from defaults, then the TOML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*sdk.Config, error) {
	cfg := sdk.DefaultConfig()

	if path != "" {
		f, err := readFile(path)
		if err != nil {
			return nil, err
		}
		f.apply(cfg)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in config file %s", undecoded[0].String(), path)
	}
	return &f, nil
}

func (f *File) apply(cfg *sdk.Config) {
	if f.APIKey != "" {
		cfg.WithAPIKey(f.APIKey)
	}
	if f.BaseURL != "" {
		cfg.WithBaseURL(f.BaseURL)
	}
	if f.Timeout.Duration > 0 {
		cfg.WithTimeout(f.Timeout.Duration)
	}
	if f.MaxRetries != nil {
		cfg.WithRetries(*f.MaxRetries)
	}
	for k, v := range f.Headers {
		cfg.WithHeader(k, v)
	}
	if f.RateLimit != nil {
		cfg.WithRateLimit(f.RateLimit.RequestsPerSecond, f.RateLimit.Burst)
	}
	if f.AutoIdempotencyKeys {
		cfg.WithAutoIdempotencyKeys()
	}
}

func applyEnv(cfg *sdk.Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.WithAPIKey(v)
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.WithBaseURL(v)
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.WithTimeout(d)
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxRetries, err)
		}
		cfg.WithRetries(n)
	}
	return nil
}
