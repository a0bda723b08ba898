package repository

import (
	"context"
	"fmt"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryLedger implements LedgerRepository in process. Every code has a
// one-token semaphore; whoever holds the token is the only writer for that
// code, so different codes never contend with each other.
type memoryLedger struct {
	mu          sync.RWMutex
	codes       map[string]*codeSlot
	lockTimeout time.Duration
}

type codeSlot struct {
	token       chan struct{}
	code        model.RedemptionCode
	redemptions map[string]*model.Redemption
	order       []*model.Redemption
}

// NewMemoryLedger creates an in-process ledger. Lock waits longer than
// lockTimeout fail with ErrTransient.
func NewMemoryLedger(lockTimeout time.Duration) LedgerRepository {
	return &memoryLedger{
		codes:       make(map[string]*codeSlot),
		lockTimeout: lockTimeout,
	}
}

// CreateCode creates a new redemption code
func (l *memoryLedger) CreateCode(ctx context.Context, code *model.RedemptionCode) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.codes[code.Code]; exists {
		return apperrors.ErrCodeAlreadyExists
	}
	l.codes[code.Code] = &codeSlot{
		token:       make(chan struct{}, 1),
		code:        *code,
		redemptions: make(map[string]*model.Redemption),
	}
	return nil
}

// GetCode retrieves a code by its normalized value
func (l *memoryLedger) GetCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	slot := l.slot(code)
	if slot == nil {
		return nil, apperrors.ErrCodeNotFound
	}
	if err := slot.acquire(ctx, l.lockTimeout); err != nil {
		return nil, err
	}
	defer slot.release()

	snapshot := slot.code
	return &snapshot, nil
}

// ListRedemptions retrieves all redemptions recorded against a code
func (l *memoryLedger) ListRedemptions(ctx context.Context, code string) ([]*model.Redemption, error) {
	slot := l.slot(code)
	if slot == nil {
		return []*model.Redemption{}, nil
	}
	if err := slot.acquire(ctx, l.lockTimeout); err != nil {
		return nil, err
	}
	defer slot.release()

	out := make([]*model.Redemption, 0, len(slot.order))
	for _, r := range slot.order {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

// TryConsume atomically consumes one slot of code for walletAddress
func (l *memoryLedger) TryConsume(ctx context.Context, code, walletAddress string) (model.Outcome, error) {
	slot := l.slot(code)
	if slot == nil {
		return model.Outcome{Status: model.StatusUnknownCode}, nil
	}
	if err := slot.acquire(ctx, l.lockTimeout); err != nil {
		return model.Outcome{}, err
	}
	defer slot.release()

	// A caller that gave up while queued must not win a slot.
	if err := ctx.Err(); err != nil {
		return model.Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrTransient, err)
	}

	capacity := slot.code.Capacity
	if _, exists := slot.redemptions[walletAddress]; exists {
		return model.Outcome{Status: model.StatusAlreadyRedeemed, Capacity: capacity}, nil
	}
	if slot.code.ConsumedCount >= capacity {
		return model.Outcome{Status: model.StatusCapacityExhausted, Capacity: capacity}, nil
	}

	now := time.Now().UTC()
	redemption := &model.Redemption{
		ID:            uuid.NewString(),
		CodeID:        slot.code.ID,
		Code:          slot.code.Code,
		WalletAddress: walletAddress,
		Season:        slot.code.Season,
		RedeemedAt:    now,
	}
	slot.redemptions[walletAddress] = redemption
	slot.order = append(slot.order, redemption)
	slot.code.ConsumedCount++
	slot.code.UpdatedAt = now

	copied := *redemption
	return model.Outcome{
		Status:     model.StatusRedeemed,
		Remaining:  slot.code.Remaining(),
		Capacity:   capacity,
		Redemption: &copied,
	}, nil
}

func (l *memoryLedger) slot(code string) *codeSlot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.codes[code]
}

func (s *codeSlot) acquire(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperrors.ErrTransient, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: lock wait exceeded %s", apperrors.ErrTransient, timeout)
	}
}

func (s *codeSlot) release() {
	<-s.token
}
