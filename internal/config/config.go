// Package config provides environment-driven configuration for dashport.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/persistorai/dashport/internal/models"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL   Secret
	APIKey        Secret
	Port          string
	ListenHost    string
	CORSOrigins   []string
	LogLevel      string
	DBMaxConns    int
	MaxBundleMB   int
	MaxFileMB     int
	ImportTimeout time.Duration

	// MergeTargets are the default consolidation targets; zero when unset.
	MergeTargets models.MergeTargets
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: Secret(envOrDefault("DATABASE_URL", "")),
		APIKey:      Secret(envOrDefault("API_KEY", "")),
		Port:        envOrDefault("PORT", "3040"),
		ListenHost:  envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
	}

	var err error

	if cfg.DBMaxConns, err = envInt("DB_MAX_CONNS", 10, 1, 100); err != nil {
		return nil, err
	}

	if cfg.MaxBundleMB, err = envInt("MAX_BUNDLE_MB", 50, 1, 1024); err != nil {
		return nil, err
	}

	if cfg.MaxFileMB, err = envInt("MAX_BUNDLE_FILE_MB", 16, 1, 1024); err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(envOrDefault("IMPORT_TIMEOUT", "5m"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("IMPORT_TIMEOUT must be a positive duration")
	}
	cfg.ImportTimeout = timeout

	if cfg.MergeTargets.DefaultID, err = envID("MERGE_DEFAULT_DATABASE_ID"); err != nil {
		return nil, err
	}

	if cfg.MergeTargets.ClickHouseID, err = envID("MERGE_CLICKHOUSE_DATABASE_ID"); err != nil {
		return nil, err
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:8088")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MaxBundleBytes returns the upload limit for a zipped bundle.
func (c *Config) MaxBundleBytes() int64 {
	return int64(c.MaxBundleMB) << 20
}

// MaxFileBytes returns the limit for one decompressed bundle file.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileMB) << 20
}

// HasMergeTargets reports whether both consolidation targets are configured.
func (c *Config) HasMergeTargets() bool {
	return c.MergeTargets.DefaultID > 0 && c.MergeTargets.ClickHouseID > 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback, lo, hi int) (int, error) {
	v, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}

	return v, nil
}

// envID reads an optional positive database id.
func envID(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}

	return id, nil
}
