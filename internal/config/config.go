// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob. All variables carry the CASARO_ prefix
// and every one has a development default, so a bare `go run` works.
type Config struct {
	Addr string

	// PGDSN selects the Postgres user directory; empty falls back to the
	// in-memory store with seeded demo accounts.
	PGDSN string

	// RedisAddr selects Redis-backed session storage for the smoke tool;
	// empty keeps sessions on the local filesystem.
	RedisAddr string

	AuthSecret string
	AuthIssuer string
	SessionTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	Version string
	Commit  string
}

// Load reads a local .env if present, then the process environment.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Addr:           getenv("CASARO_ADDR", ":8080"),
		PGDSN:          os.Getenv("CASARO_PG_DSN"),
		RedisAddr:      os.Getenv("CASARO_REDIS_ADDR"),
		AuthSecret:     getenv("CASARO_AUTH_SECRET", "dev-secret-change-me"),
		AuthIssuer:     getenv("CASARO_AUTH_ISSUER", "casaro"),
		SessionTTL:     30 * time.Minute,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		Version:        getenv("CASARO_VERSION", "dev"),
		Commit:         getenv("CASARO_COMMIT", "unknown"),
	}

	if raw := os.Getenv("CASARO_SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: invalid CASARO_SESSION_TTL %q", raw)
		}
		cfg.SessionTTL = d
	}
	if raw := os.Getenv("CASARO_RATE_RPS"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("config: invalid CASARO_RATE_RPS %q", raw)
		}
		cfg.RateLimitRPS = f
	}
	if raw := os.Getenv("CASARO_RATE_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid CASARO_RATE_BURST %q", raw)
		}
		cfg.RateLimitBurst = n
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
