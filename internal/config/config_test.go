package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PAYMENT_POLL_ATTEMPTS", "")
	t.Setenv("SESSION_BACKEND", "")
	cfg := FromEnv()
	if cfg.Payment.PollAttempts != 20 {
		t.Fatalf("expected 20 poll attempts, got %d", cfg.Payment.PollAttempts)
	}
	if cfg.Payment.PollDelay != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s poll delay, got %s", cfg.Payment.PollDelay)
	}
	if cfg.SessionBackend != "postgres" {
		t.Fatalf("expected postgres session backend, got %q", cfg.SessionBackend)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("COMMERCE_BASE_URL", "https://api.example.com/")
	t.Setenv("PAYMENT_POLL_DELAY_MS", "250")
	t.Setenv("PAYMENT_POLL_ATTEMPTS", "nope")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SESSION_BACKEND", "Memory")

	cfg := FromEnv()
	if cfg.Commerce.BaseURL != "https://api.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Commerce.BaseURL)
	}
	if cfg.Payment.PollDelay != 250*time.Millisecond {
		t.Fatalf("unexpected poll delay %s", cfg.Payment.PollDelay)
	}
	if cfg.Payment.PollAttempts != 20 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.Payment.PollAttempts)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.SessionBackend != "memory" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.SessionBackend)
	}
}
