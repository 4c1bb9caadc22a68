// Package config provides environment-driven configuration for opsapi.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
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
	DatabaseURL Secret
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string

	JWTSecret Secret
	JWTIssuer string

	DBMaxConns int
	SlowQuery  time.Duration

	// FuzzyCandidateCap bounds in-memory search candidates; 0 is unbounded.
	FuzzyCandidateCap    int
	DeletedRetentionDays int
	// AuditRetentionDays of 0 keeps audit entries forever.
	AuditRetentionDays int

	RateLimitRPS   float64
	RateLimitBurst int

	// ModelOverridesFile optionally pins model columns and tables (YAML).
	ModelOverridesFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        Secret(envOrDefault("DATABASE_URL", "")),
		Port:               envOrDefault("PORT", "3040"),
		ListenHost:         envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		JWTSecret:          Secret(envOrDefault("JWT_SECRET", "")),
		JWTIssuer:          envOrDefault("JWT_ISSUER", "opsapi"),
		ModelOverridesFile: envOrDefault("MODEL_OVERRIDES_FILE", ""),
	}

	ints := []struct {
		key      string
		fallback string
		min, max int
		dst      *int
	}{
		{"DB_MAX_CONNS", "20", 1, 500, &cfg.DBMaxConns},
		{"FUZZY_CANDIDATE_CAP", "5000", 0, 1_000_000, &cfg.FuzzyCandidateCap},
		{"DELETED_RETENTION_DAYS", "30", 1, 3650, &cfg.DeletedRetentionDays},
		{"AUDIT_RETENTION_DAYS", "0", 0, 36500, &cfg.AuditRetentionDays},
		{"RATE_LIMIT_BURST", "200", 1, 100_000, &cfg.RateLimitBurst},
	}

	for _, v := range ints {
		n, err := envInt(v.key, v.fallback, v.min, v.max)
		if err != nil {
			return nil, err
		}

		*v.dst = n
	}

	slowMS, err := envInt("SLOW_QUERY_MS", "500", 0, 600_000)
	if err != nil {
		return nil, err
	}
	cfg.SlowQuery = time.Duration(slowMS) * time.Millisecond

	rps, err := strconv.ParseFloat(envOrDefault("RATE_LIMIT_RPS", "100"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS must be a positive number")
	}
	cfg.RateLimitRPS = rps

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3000")
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

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key, fallback string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, fallback))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}

	return n, nil
}
