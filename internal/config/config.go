// Package config holds the server's environment-driven settings,
// following the teacher's pattern of a flat struct populated from
// env vars with a Validate step run once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full set of settings the server needs to boot.
type Config struct {
	// DatabasePath is the filesystem path to the sqlite database file.
	// ":memory:" is accepted for tests.
	DatabasePath string

	// HTTPAddr is the address the gin HTTP server listens on.
	HTTPAddr string

	// MaxRecordTransferCount bounds how many rows a single paginated
	// list response may return, regardless of the caller-requested
	// limit (spec.md §4.1).
	MaxRecordTransferCount int

	// DefaultPageLimit is used when a list request omits a limit.
	DefaultPageLimit int

	// EventBufferSize bounds the per-subscriber channel depth of the
	// in-process broadcast hub (spec.md §9).
	EventBufferSize int

	// SSEPingInterval is how often a live event stream sends a
	// keep-alive comment line.
	SSEPingInterval time.Duration

	// LogVerbosity is the klog -v level applied at startup.
	LogVerbosity int
}

// FromEnv builds a Config from environment variables, applying the
// documented defaults for anything unset.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabasePath:           getEnvOr("TORC_DATABASE_PATH", "torc.db"),
		HTTPAddr:               getEnvOr("TORC_HTTP_ADDR", ":8080"),
		MaxRecordTransferCount: 10000,
		DefaultPageLimit:       10000,
		EventBufferSize:        256,
		SSEPingInterval:        15 * time.Second,
		LogVerbosity:           0,
	}

	if v := os.Getenv("TORC_MAX_RECORD_TRANSFER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TORC_MAX_RECORD_TRANSFER_COUNT %q: %w", v, err)
		}
		cfg.MaxRecordTransferCount = n
	}

	if v := os.Getenv("TORC_DEFAULT_PAGE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TORC_DEFAULT_PAGE_LIMIT %q: %w", v, err)
		}
		cfg.DefaultPageLimit = n
	}

	if v := os.Getenv("TORC_EVENT_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TORC_EVENT_BUFFER_SIZE %q: %w", v, err)
		}
		cfg.EventBufferSize = n
	}

	if v := os.Getenv("TORC_SSE_PING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TORC_SSE_PING_INTERVAL %q: %w", v, err)
		}
		cfg.SSEPingInterval = d
	}

	if v := os.Getenv("TORC_LOG_VERBOSITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TORC_LOG_VERBOSITY %q: %w", v, err)
		}
		cfg.LogVerbosity = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are internally consistent.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database path cannot be empty")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: http addr cannot be empty")
	}
	if c.MaxRecordTransferCount <= 0 {
		return fmt.Errorf("config: max record transfer count must be positive")
	}
	if c.DefaultPageLimit <= 0 || c.DefaultPageLimit > c.MaxRecordTransferCount {
		return fmt.Errorf("config: default page limit must be positive and <= max record transfer count")
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("config: event buffer size must be positive")
	}
	if c.SSEPingInterval <= 0 {
		return fmt.Errorf("config: sse ping interval must be positive")
	}
	return nil
}

func getEnvOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
