package repository

import (
	"context"
	"redemption-gate/internal/model"
)

// LedgerRepository is the single point of truth for code capacity and
// per-wallet uniqueness. It is the only place allowed to increment a code's
// consumed count.
type LedgerRepository interface {
	// CreateCode creates a new redemption code
	CreateCode(ctx context.Context, code *model.RedemptionCode) error

	// GetCode retrieves a code by its normalized value
	GetCode(ctx context.Context, code string) (*model.RedemptionCode, error)

	// ListRedemptions retrieves all redemptions recorded against a code
	ListRedemptions(ctx context.Context, code string) ([]*model.Redemption, error)

	// TryConsume atomically checks uniqueness and capacity and, when both
	// pass, records the redemption and increments the consumed count
	// together. Definitive verdicts are returned in the Outcome; the error
	// is reserved for lock timeouts and storage failures (ErrTransient).
	TryConsume(ctx context.Context, code, walletAddress string) (model.Outcome, error)
}
