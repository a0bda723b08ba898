package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"redemption-gate/internal/repository"
	"redemption-gate/internal/service"
	apperrors "redemption-gate/pkg/errors"
	"testing"
	"time"
)

const sample = `codes:
  - code: promo
    capacity: 1
  - code: SEASON2
    capacity: 250
    season: 2
    cooldown_period: 24h
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeSeed(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(f.Codes))
	}
	second := f.Codes[1]
	if second.Code != "SEASON2" || second.Capacity != 250 || second.Season == nil || *second.Season != 2 || second.CooldownPeriod != "24h" {
		t.Fatalf("unexpected code %+v", second)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeSeed(t, "codes: [::")); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ledger := repository.NewMemoryLedger(time.Second)
	codes := service.NewCodeService(ledger)
	f, err := Load(writeSeed(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	created, err := Apply(context.Background(), codes, f)
	if err != nil || created != 2 {
		t.Fatalf("expected 2 created, got %d (%v)", created, err)
	}

	created, err = Apply(context.Background(), codes, f)
	if err != nil || created != 0 {
		t.Fatalf("expected re-apply to create nothing, got %d (%v)", created, err)
	}

	remaining, err := codes.Remaining(context.Background(), "PROMO")
	if err != nil || remaining.Remaining != 1 {
		t.Fatalf("expected PROMO with 1 remaining, got %+v (%v)", remaining, err)
	}
}

func TestApplyStopsOnInvalidCode(t *testing.T) {
	codes := service.NewCodeService(repository.NewMemoryLedger(time.Second))
	f, err := Load(writeSeed(t, "codes:\n  - code: OK\n    capacity: 1\n  - code: BAD\n    capacity: 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	created, err := Apply(context.Background(), codes, f)
	if !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 code created before the failure, got %d", created)
	}
}
