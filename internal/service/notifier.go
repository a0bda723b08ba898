package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RedemptionEvent is emitted after a redemption has committed.
type RedemptionEvent struct {
	Code          string
	WalletAddress string
	Remaining     int
	Capacity      int
	Season        *int
	RedeemedAt    time.Time
}

// Notifier receives committed redemptions for user-facing fan-out.
// Implementations must not block the request path.
type Notifier interface {
	Notify(ctx context.Context, event RedemptionEvent)
}

// Notifiers fans one event out to several sinks.
type Notifiers []Notifier

// Notify implements Notifier
func (n Notifiers) Notify(ctx context.Context, event RedemptionEvent) {
	for _, notifier := range n {
		notifier.Notify(ctx, event)
	}
}

// LogNotifier writes each event to the structured log.
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(_ context.Context, event RedemptionEvent) {
	log.WithFields(log.Fields{
		"code":      event.Code,
		"wallet":    event.WalletAddress,
		"remaining": event.Remaining,
		"capacity":  event.Capacity,
	}).Info("code redeemed")
}
