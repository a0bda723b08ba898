package logging

import (
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLevelAndFormat(t *testing.T) {
	t.Cleanup(func() {
		_ = Setup(Options{})
	})

	if err := Setup(Options{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected json formatter")
	}
}

func TestSetupRejectsBadInput(t *testing.T) {
	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if err := Setup(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestSetupWithFile(t *testing.T) {
	t.Cleanup(func() {
		_ = Setup(Options{})
	})

	path := filepath.Join(t.TempDir(), "redemption.log")
	if err := Setup(Options{File: path}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Info("file sink ready")
}
