package service

import (
	"context"
	"fmt"
	"redemption-gate/internal/model"
	"redemption-gate/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Gate evaluates whether evidence may attempt a redemption.
type Gate interface {
	Evaluate(ctx context.Context, ev model.Evidence) (model.Verdict, error)
}

// AdmissionService is the entry point for redemption attempts. It holds no
// state of its own and never retries; retrying is the caller's decision.
type AdmissionService struct {
	gate     Gate
	ledger   repository.LedgerRepository
	notifier Notifier
}

// NewAdmissionService creates a new admission service
func NewAdmissionService(gate Gate, ledger repository.LedgerRepository, notifier Notifier) *AdmissionService {
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &AdmissionService{
		gate:     gate,
		ledger:   ledger,
		notifier: notifier,
	}
}

// Redeem validates the attempt, runs it past the abuse gate and, when the
// gate allows it, tries to consume a slot. Input errors wrap
// ErrInvalidRequest and retryable failures wrap ErrTransient; every
// definitive verdict is a response.
func (s *AdmissionService) Redeem(ctx context.Context, rawCode string, ev model.Evidence) (*model.RedeemResponse, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	ev, err = NormalizeEvidence(ev)
	if err != nil {
		return nil, err
	}

	verdict, err := s.gate.Evaluate(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("evaluate evidence: %w", err)
	}
	if !verdict.Allowed {
		return model.NewRedeemResponse(verdict.Reason, nil), nil
	}

	outcome, err := s.ledger.TryConsume(ctx, code, ev.WalletAddress)
	if err != nil {
		log.WithError(err).WithField("code", code).Warn("redemption attempt failed transiently")
		return nil, fmt.Errorf("consume %s: %w", code, err)
	}

	switch outcome.Status {
	case model.StatusRedeemed:
		remaining := outcome.Remaining
		event := RedemptionEvent{
			Code:          code,
			WalletAddress: ev.WalletAddress,
			Remaining:     remaining,
			Capacity:      outcome.Capacity,
		}
		if outcome.Redemption != nil {
			event.Season = outcome.Redemption.Season
			event.RedeemedAt = outcome.Redemption.RedeemedAt
		}
		s.notifier.Notify(ctx, event)
		return model.NewRedeemResponse(model.ReasonRedeemed, &remaining), nil
	case model.StatusCapacityExhausted:
		remaining := 0
		return model.NewRedeemResponse(model.ReasonCapacityExhausted, &remaining), nil
	case model.StatusAlreadyRedeemed:
		return model.NewRedeemResponse(model.ReasonAlreadyRedeemed, nil), nil
	case model.StatusUnknownCode:
		return model.NewRedeemResponse(model.ReasonUnknownCode, nil), nil
	default:
		return nil, fmt.Errorf("consume %s: unexpected ledger status %q", code, outcome.Status)
	}
}
