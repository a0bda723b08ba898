package service

import (
	"context"
	"fmt"
	"redemption-gate/internal/model"
	"redemption-gate/internal/repository"
	apperrors "redemption-gate/pkg/errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// AbuseGateConfig holds the eligibility thresholds.
type AbuseGateConfig struct {
	ScoreThreshold           int
	IPRateLimit              int
	IPRateWindow             time.Duration
	MaxWalletsPerFingerprint int
}

// AbuseGate decides whether an attempt may compete for a slot at all. It
// owns the velocity and device records and never touches the ledger.
type AbuseGate struct {
	tracker repository.AbuseTracker
	cfg     AbuseGateConfig
	now     func() time.Time
}

// NewAbuseGate creates a gate backed by tracker
func NewAbuseGate(tracker repository.AbuseTracker, cfg AbuseGateConfig) *AbuseGate {
	return &AbuseGate{
		tracker: tracker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Evaluate applies the eligibility rules in order and reports the first
// failing one. The IP attempt is recorded before any rule runs so failed
// attempts still count toward velocity; the fingerprint is only bound once
// every other rule has passed.
func (g *AbuseGate) Evaluate(ctx context.Context, ev model.Evidence) (model.Verdict, error) {
	attempts, err := g.tracker.RecordAttempt(ctx, ev.SourceIP, g.now().UTC(), g.cfg.IPRateWindow)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %w", apperrors.ErrTransient, err)
	}

	if ev.HumanScore < g.cfg.ScoreThreshold {
		return g.reject(ev, model.ReasonScoreTooLow), nil
	}
	if !ev.ChallengeTokenValid {
		return g.reject(ev, model.ReasonInvalidChallenge), nil
	}
	if attempts > g.cfg.IPRateLimit {
		return g.reject(ev, model.ReasonIPRateLimited), nil
	}

	bound, err := g.tracker.BindFingerprint(ctx, ev.FingerprintHash, ev.WalletAddress, g.cfg.MaxWalletsPerFingerprint)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %w", apperrors.ErrTransient, err)
	}
	if !bound {
		return g.reject(ev, model.ReasonFingerprintBlocked), nil
	}

	return model.Verdict{Allowed: true}, nil
}

func (g *AbuseGate) reject(ev model.Evidence, reason model.Reason) model.Verdict {
	log.WithFields(log.Fields{
		"reason": reason,
		"wallet": ev.WalletAddress,
		"ip":     ev.SourceIP,
	}).Info("abuse gate rejected attempt")
	return model.Verdict{Allowed: false, Reason: reason}
}
