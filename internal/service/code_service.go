package service

import (
	"context"
	"fmt"
	"redemption-gate/internal/model"
	"redemption-gate/internal/repository"
	apperrors "redemption-gate/pkg/errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeService handles administration and read-only views of codes
type CodeService struct {
	ledger repository.LedgerRepository
}

// NewCodeService creates a new code service
func NewCodeService(ledger repository.LedgerRepository) *CodeService {
	return &CodeService{ledger: ledger}
}

// CreateCode creates a new code with a fixed capacity
func (s *CodeService) CreateCode(ctx context.Context, req *model.CreateCodeRequest) (*model.RedemptionCode, error) {
	code, err := NormalizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", apperrors.ErrInvalidRequest)
	}

	var cooldown time.Duration
	if raw := strings.TrimSpace(req.CooldownPeriod); raw != "" {
		cooldown, err = time.ParseDuration(raw)
		if err != nil || cooldown < 0 {
			return nil, fmt.Errorf("%w: cooldown period %q", apperrors.ErrInvalidRequest, raw)
		}
	}

	now := time.Now().UTC()
	rc := &model.RedemptionCode{
		ID:             uuid.NewString(),
		Code:           code,
		Capacity:       req.Capacity,
		Season:         req.Season,
		CooldownPeriod: cooldown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.ledger.CreateCode(ctx, rc); err != nil {
		return nil, err
	}
	return rc, nil
}

// GetCodeDetails retrieves code details including redemption history
func (s *CodeService) GetCodeDetails(ctx context.Context, rawCode string) (*model.CodeDetailsResponse, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}

	rc, err := s.ledger.GetCode(ctx, code)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.ledger.ListRedemptions(ctx, code)
	if err != nil {
		return nil, err
	}

	redeemedBy := make([]string, 0, len(redemptions))
	for _, redemption := range redemptions {
		redeemedBy = append(redeemedBy, redemption.WalletAddress)
	}

	return &model.CodeDetailsResponse{
		Code:          rc.Code,
		Capacity:      rc.Capacity,
		ConsumedCount: rc.ConsumedCount,
		Remaining:     rc.Remaining(),
		Season:        rc.Season,
		RedeemedBy:    redeemedBy,
	}, nil
}

// Remaining returns the public counter for a code
func (s *CodeService) Remaining(ctx context.Context, rawCode string) (*model.RemainingResponse, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}

	rc, err := s.ledger.GetCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return &model.RemainingResponse{
		Code:      rc.Code,
		Capacity:  rc.Capacity,
		Remaining: rc.Remaining(),
	}, nil
}
