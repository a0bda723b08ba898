package repository

import (
	"context"
	"errors"
	"fmt"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestCode builds a fresh code; suffixing keeps integration runs against
// shared databases independent.
func newTestCode(name string, capacity int) *model.RedemptionCode {
	now := time.Now().UTC()
	return &model.RedemptionCode{
		ID:        uuid.NewString(),
		Code:      fmt.Sprintf("%s_%d", name, now.UnixNano()),
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testWallet(i int) string {
	return fmt.Sprintf("0x%040x", i+1)
}

func seedCode(t *testing.T, ledger LedgerRepository, name string, capacity int) *model.RedemptionCode {
	t.Helper()
	code := newTestCode(name, capacity)
	if err := ledger.CreateCode(context.Background(), code); err != nil {
		t.Fatalf("create code: %v", err)
	}
	return code
}

// runLedgerContract exercises the admission invariants every ledger backend
// must uphold.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) LedgerRepository) {
	t.Run("UnknownCode", func(t *testing.T) {
		ledger := newLedger(t)
		outcome, err := ledger.TryConsume(context.Background(), "NOPE_"+uuid.NewString()[:8], testWallet(0))
		if err != nil {
			t.Fatalf("try consume: %v", err)
		}
		if outcome.Status != model.StatusUnknownCode {
			t.Fatalf("expected unknown_code, got %s", outcome.Status)
		}
	})

	t.Run("DuplicateCodeRejected", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "DUP", 1)
		again := newTestCode("DUP", 1)
		again.Code = code.Code
		if err := ledger.CreateCode(context.Background(), again); !errors.Is(err, apperrors.ErrCodeAlreadyExists) {
			t.Fatalf("expected ErrCodeAlreadyExists, got %v", err)
		}
	})

	t.Run("RemainingCountsDown", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "COUNT", 3)
		for i, want := range []int{2, 1, 0} {
			outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(i))
			if err != nil {
				t.Fatalf("try consume %d: %v", i, err)
			}
			if outcome.Status != model.StatusRedeemed {
				t.Fatalf("attempt %d: expected redeemed, got %s", i, outcome.Status)
			}
			if outcome.Remaining != want {
				t.Fatalf("attempt %d: expected remaining %d, got %d", i, want, outcome.Remaining)
			}
		}

		outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(3))
		if err != nil {
			t.Fatalf("try consume: %v", err)
		}
		if outcome.Status != model.StatusCapacityExhausted || outcome.Remaining != 0 {
			t.Fatalf("expected capacity_exhausted with 0 remaining, got %s/%d", outcome.Status, outcome.Remaining)
		}
	})

	t.Run("AlreadyRedeemedDoesNotConsume", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "ONCE", 5)
		wallet := testWallet(0)

		first, err := ledger.TryConsume(context.Background(), code.Code, wallet)
		if err != nil || first.Status != model.StatusRedeemed {
			t.Fatalf("expected first redemption, got %v / %v", first.Status, err)
		}
		second, err := ledger.TryConsume(context.Background(), code.Code, wallet)
		if err != nil {
			t.Fatalf("try consume: %v", err)
		}
		if second.Status != model.StatusAlreadyRedeemed {
			t.Fatalf("expected already_redeemed, got %s", second.Status)
		}

		stored, err := ledger.GetCode(context.Background(), code.Code)
		if err != nil {
			t.Fatalf("get code: %v", err)
		}
		if stored.ConsumedCount != 1 {
			t.Fatalf("expected consumed count 1, got %d", stored.ConsumedCount)
		}
	})

	t.Run("AlreadyRedeemedWinsOverExhausted", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "FULL", 1)
		if outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(0)); err != nil || outcome.Status != model.StatusRedeemed {
			t.Fatalf("expected redemption, got %v / %v", outcome.Status, err)
		}
		outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(0))
		if err != nil {
			t.Fatalf("try consume: %v", err)
		}
		if outcome.Status != model.StatusAlreadyRedeemed {
			t.Fatalf("expected already_redeemed for the holder, got %s", outcome.Status)
		}
	})

	t.Run("NoLostUpdates", func(t *testing.T) {
		ledger := newLedger(t)
		const capacity = 5
		code := seedCode(t, ledger, "FLASH", capacity)

		attempts := capacity + 10
		var redeemed, exhausted, other int64
		var wg sync.WaitGroup
		stop := make(chan struct{})
		snapshotErr := make(chan error, 1)

		// Watch for overshoot while the race is running.
		go func() {
			for {
				select {
				case <-stop:
					close(snapshotErr)
					return
				default:
				}
				stored, err := ledger.GetCode(context.Background(), code.Code)
				if err == nil && stored.ConsumedCount > capacity {
					snapshotErr <- fmt.Errorf("consumed count %d exceeded capacity", stored.ConsumedCount)
					close(snapshotErr)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(i))
				switch {
				case err != nil:
					atomic.AddInt64(&other, 1)
				case outcome.Status == model.StatusRedeemed:
					atomic.AddInt64(&redeemed, 1)
				case outcome.Status == model.StatusCapacityExhausted:
					atomic.AddInt64(&exhausted, 1)
				default:
					atomic.AddInt64(&other, 1)
				}
			}(i)
		}
		wg.Wait()
		close(stop)
		if err := <-snapshotErr; err != nil {
			t.Fatalf("snapshot: %v", err)
		}

		if redeemed != capacity {
			t.Fatalf("expected %d redeemed, got %d", capacity, redeemed)
		}
		if exhausted != int64(attempts-capacity) {
			t.Fatalf("expected %d exhausted, got %d", attempts-capacity, exhausted)
		}
		if other != 0 {
			t.Fatalf("expected no other outcomes, got %d", other)
		}

		stored, err := ledger.GetCode(context.Background(), code.Code)
		if err != nil {
			t.Fatalf("get code: %v", err)
		}
		if stored.ConsumedCount != capacity {
			t.Fatalf("expected consumed count %d, got %d", capacity, stored.ConsumedCount)
		}
		redemptions, err := ledger.ListRedemptions(context.Background(), code.Code)
		if err != nil {
			t.Fatalf("list redemptions: %v", err)
		}
		if len(redemptions) != capacity {
			t.Fatalf("expected %d redemption rows, got %d", capacity, len(redemptions))
		}
	})

	t.Run("ConcurrentSameWallet", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "PROMO_SUPER", 100)
		wallet := testWallet(42)

		var redeemed, already, other int64
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome, err := ledger.TryConsume(context.Background(), code.Code, wallet)
				switch {
				case err != nil:
					atomic.AddInt64(&other, 1)
				case outcome.Status == model.StatusRedeemed:
					atomic.AddInt64(&redeemed, 1)
				case outcome.Status == model.StatusAlreadyRedeemed:
					atomic.AddInt64(&already, 1)
				default:
					atomic.AddInt64(&other, 1)
				}
			}()
		}
		wg.Wait()

		if redeemed != 1 || already != 9 || other != 0 {
			t.Fatalf("expected 1 redeemed / 9 already, got %d / %d (other %d)", redeemed, already, other)
		}
		stored, err := ledger.GetCode(context.Background(), code.Code)
		if err != nil {
			t.Fatalf("get code: %v", err)
		}
		if stored.ConsumedCount != 1 {
			t.Fatalf("expected consumed count 1, got %d", stored.ConsumedCount)
		}
	})

	t.Run("SingleSlotRace", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "PROMO", 1)

		outcomes := make([]model.Outcome, 2)
		var wg sync.WaitGroup
		for i := range outcomes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(i))
				if err != nil {
					t.Errorf("try consume: %v", err)
					return
				}
				outcomes[i] = outcome
			}(i)
		}
		wg.Wait()

		var winners int
		for _, outcome := range outcomes {
			switch outcome.Status {
			case model.StatusRedeemed:
				winners++
				if outcome.Remaining != 0 {
					t.Fatalf("expected remaining 0 for the winner, got %d", outcome.Remaining)
				}
			case model.StatusCapacityExhausted:
			default:
				t.Fatalf("unexpected status %s", outcome.Status)
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d", winners)
		}
	})

	t.Run("CancelledAttemptLeavesNoEffect", func(t *testing.T) {
		ledger := newLedger(t)
		code := seedCode(t, ledger, "RETRY", 2)
		wallet := testWallet(7)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := ledger.TryConsume(ctx, code.Code, wallet); !apperrors.IsTransient(err) {
			t.Fatalf("expected transient error for cancelled context, got %v", err)
		}

		stored, err := ledger.GetCode(context.Background(), code.Code)
		if err != nil {
			t.Fatalf("get code: %v", err)
		}
		if stored.ConsumedCount != 0 {
			t.Fatalf("expected no consumption after cancelled attempt, got %d", stored.ConsumedCount)
		}

		retry, err := ledger.TryConsume(context.Background(), code.Code, wallet)
		if err != nil || retry.Status != model.StatusRedeemed {
			t.Fatalf("expected retry to redeem, got %v / %v", retry.Status, err)
		}
		again, err := ledger.TryConsume(context.Background(), code.Code, wallet)
		if err != nil || again.Status != model.StatusAlreadyRedeemed {
			t.Fatalf("expected second retry to be already_redeemed, got %v / %v", again.Status, err)
		}

		redemptions, err := ledger.ListRedemptions(context.Background(), code.Code)
		if err != nil {
			t.Fatalf("list redemptions: %v", err)
		}
		if len(redemptions) != 1 {
			t.Fatalf("expected exactly one redemption row, got %d", len(redemptions))
		}
	})

	t.Run("CodesAreIndependent", func(t *testing.T) {
		ledger := newLedger(t)
		a := seedCode(t, ledger, "SEASON_A", 1)
		b := seedCode(t, ledger, "SEASON_B", 1)
		wallet := testWallet(1)

		for _, code := range []*model.RedemptionCode{a, b} {
			outcome, err := ledger.TryConsume(context.Background(), code.Code, wallet)
			if err != nil || outcome.Status != model.StatusRedeemed {
				t.Fatalf("expected %s to redeem, got %v / %v", code.Code, outcome.Status, err)
			}
		}
	})

	t.Run("SeasonCopiedToRedemption", func(t *testing.T) {
		ledger := newLedger(t)
		season := 3
		code := newTestCode("SEASONAL", 2)
		code.Season = &season
		if err := ledger.CreateCode(context.Background(), code); err != nil {
			t.Fatalf("create code: %v", err)
		}

		outcome, err := ledger.TryConsume(context.Background(), code.Code, testWallet(0))
		if err != nil || outcome.Status != model.StatusRedeemed {
			t.Fatalf("expected redemption, got %v / %v", outcome.Status, err)
		}
		if outcome.Redemption == nil || outcome.Redemption.Season == nil || *outcome.Redemption.Season != season {
			t.Fatalf("expected season %d on redemption", season)
		}
	})
}
