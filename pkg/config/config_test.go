package config

import (
	"os"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "LEDGER_BACKEND", "TRACKER_BACKEND", "SCORE_THRESHOLD", "IP_RATE_WINDOW", "LOCK_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerBackend != BackendSQL {
		t.Fatalf("expected sql ledger by default, got %q", cfg.LedgerBackend)
	}
	if cfg.ScoreThreshold != 10 {
		t.Fatalf("expected score threshold 10, got %d", cfg.ScoreThreshold)
	}
	if cfg.IPRateWindow != 10*time.Minute {
		t.Fatalf("expected 10m window, got %s", cfg.IPRateWindow)
	}
	if cfg.LockTimeout != 3*time.Second {
		t.Fatalf("expected 3s lock timeout, got %s", cfg.LockTimeout)
	}
}

func TestLoadRejectsPostgresWithoutURL(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for postgres backend without DATABASE_URL")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "cassandra")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("REDEMPTION_TEST_KEY", "")
	if got := GetEnv("REDEMPTION_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("REDEMPTION_TEST_KEY", "value")
	if got := GetEnv("REDEMPTION_TEST_KEY", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}
