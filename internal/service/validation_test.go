package service

import (
	"errors"
	apperrors "redemption-gate/pkg/errors"
	"testing"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "promo", want: "PROMO"},
		{in: "  Flash_Sale-2026\t", want: "FLASH_SALE-2026"},
		{in: "", wantErr: true},
		{in: "NO SPACES", wantErr: true},
		{in: "ÜBER", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeCode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, apperrors.ErrInvalidRequest) {
				t.Errorf("NormalizeCode(%q): expected ErrInvalidRequest, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNormalizeWallet(t *testing.T) {
	const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	got, err := NormalizeWallet("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil || got != checksummed {
		t.Fatalf("expected %s, got %s (%v)", checksummed, got, err)
	}

	for _, bad := range []string{"", "0x123", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaedzz", "wallet"} {
		if _, err := NormalizeWallet(bad); !errors.Is(err, apperrors.ErrInvalidRequest) {
			t.Errorf("NormalizeWallet(%q): expected ErrInvalidRequest, got %v", bad, err)
		}
	}
}

func TestNormalizeEvidenceUnmapsIPv4(t *testing.T) {
	ev := goodEvidence(wallet(1), "fp", "::ffff:192.0.2.1")
	got, err := NormalizeEvidence(ev)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.SourceIP != "192.0.2.1" {
		t.Fatalf("expected unmapped ipv4, got %s", got.SourceIP)
	}
}
