package service

import (
	"fmt"
	"net/netip"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const maxFingerprintLength = 128

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,64}$`)

// NormalizeCode trims and upper-cases a code and checks its alphabet.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fmt.Errorf("%w: code is required", apperrors.ErrInvalidRequest)
	}
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("%w: code must be 1-64 characters of A-Z, 0-9, '_' or '-'", apperrors.ErrInvalidRequest)
	}
	return code, nil
}

// NormalizeWallet validates an EVM address and returns its checksummed
// form, so the same wallet in any letter case is one identity.
func NormalizeWallet(raw string) (string, error) {
	wallet := strings.TrimSpace(raw)
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("%w: wallet address is not a valid hex address", apperrors.ErrInvalidRequest)
	}
	return common.HexToAddress(wallet).Hex(), nil
}

// NormalizeEvidence rejects malformed evidence before it reaches the gate
// or the challenge verifier.
func NormalizeEvidence(ev model.Evidence) (model.Evidence, error) {
	wallet, err := NormalizeWallet(ev.WalletAddress)
	if err != nil {
		return ev, err
	}
	ev.WalletAddress = wallet

	ev.FingerprintHash = strings.TrimSpace(ev.FingerprintHash)
	if ev.FingerprintHash == "" || len(ev.FingerprintHash) > maxFingerprintLength {
		return ev, fmt.Errorf("%w: fingerprint hash is required", apperrors.ErrInvalidRequest)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(ev.SourceIP))
	if err != nil {
		return ev, fmt.Errorf("%w: source ip: %v", apperrors.ErrInvalidRequest, err)
	}
	ev.SourceIP = addr.Unmap().String()

	if ev.HumanScore < 0 {
		return ev, fmt.Errorf("%w: human score must not be negative", apperrors.ErrInvalidRequest)
	}
	return ev, nil
}
