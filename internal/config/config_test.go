package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.Addr)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected default session ttl %v", cfg.SessionTTL)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		t.Fatalf("rate limits must default positive: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CASARO_ADDR", ":9999")
	t.Setenv("CASARO_SESSION_TTL", "45m")
	t.Setenv("CASARO_RATE_RPS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.SessionTTL != 45*time.Minute || cfg.RateLimitRPS != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CASARO_SESSION_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a bad duration")
	}
}
