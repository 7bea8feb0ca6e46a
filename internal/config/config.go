// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/server and cmd/leaguectl.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is populated from environment variables.
type Config struct {
	// Database. An empty DatabaseURL selects the in-memory store.
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Cache
	RedisURL string
	CacheTTL time.Duration

	// API server
	APIPort     int
	Environment string // development, staging, production
	LogLevel    slog.Level

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// League rules
	RosterLimits       map[int]int // level → max active held contracts per org
	MinorRenewalSalary decimal.Decimal
	PreArbSalary       decimal.Decimal
	ArbThresholdYears  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	limits, err := ParseRosterLimits(os.Getenv("ROSTER_LIMITS"))
	if err != nil {
		return nil, err
	}
	minor, err := envDecimal("MINOR_RENEWAL_SALARY", decimal.NewFromInt(40000))
	if err != nil {
		return nil, err
	}
	preArb, err := envDecimal("PRE_ARB_SALARY", decimal.NewFromInt(800000))
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		RedisURL: envOr("REDIS_URL", ""),
		CacheTTL: envDuration("CACHE_TTL", 30*time.Second),

		APIPort:     envInt("API_PORT", envInt("PORT", 8080)),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envLevel("LOG_LEVEL", slog.LevelInfo),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		RosterLimits:       limits,
		MinorRenewalSalary: minor,
		PreArbSalary:       preArb,
		ArbThresholdYears:  envInt("ARB_THRESHOLD_YEARS", 3),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseRosterLimits parses "level:max,level:max". An empty string means no
// limits.
func ParseRosterLimits(s string) (map[int]int, error) {
	limits := make(map[int]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		level, max, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("ROSTER_LIMITS: entry %q is not level:max", part)
		}
		l, err := strconv.Atoi(strings.TrimSpace(level))
		if err != nil {
			return nil, fmt.Errorf("ROSTER_LIMITS: bad level in %q: %w", part, err)
		}
		m, err := strconv.Atoi(strings.TrimSpace(max))
		if err != nil || m < 0 {
			return nil, fmt.Errorf("ROSTER_LIMITS: bad max in %q", part)
		}
		limits[l] = m
	}
	return limits, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envLevel(key string, fallback slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return fallback
	}
	return l
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
