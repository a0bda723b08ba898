package repository

import (
	"context"
	"errors"
	"fmt"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresLedger implements LedgerRepository with pgx and a row lock: the
// code row is locked with SELECT ... FOR UPDATE before the uniqueness and
// capacity checks, so concurrent attempts on one code are serialized while
// different codes proceed in parallel.
type postgresLedger struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresLedger creates a pgx-backed ledger
func NewPostgresLedger(pool *pgxpool.Pool, lockTimeout time.Duration) LedgerRepository {
	return &postgresLedger{
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

// CreateCode creates a new redemption code
func (r *postgresLedger) CreateCode(ctx context.Context, code *model.RedemptionCode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO redemption_codes (id, code, capacity, consumed_count, season, cooldown_period, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, code.ID, code.Code, code.Capacity, code.ConsumedCount, code.Season, int64(code.CooldownPeriod), code.CreatedAt, code.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrCodeAlreadyExists
		}
		return err
	}
	return nil
}

// GetCode retrieves a code by its normalized value
func (r *postgresLedger) GetCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	rc, err := scanCode(r.pool.QueryRow(ctx, selectCodeSQL, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCodeNotFound
		}
		return nil, fmt.Errorf("get code: %w", err)
	}
	return rc, nil
}

// ListRedemptions retrieves all redemptions recorded against a code
func (r *postgresLedger) ListRedemptions(ctx context.Context, code string) ([]*model.Redemption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code_id, code, wallet_address, season, redeemed_at
		FROM code_redemptions
		WHERE code = $1
		ORDER BY redeemed_at ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	redemptions := make([]*model.Redemption, 0)
	for rows.Next() {
		var rd model.Redemption
		if err := rows.Scan(&rd.ID, &rd.CodeID, &rd.Code, &rd.WalletAddress, &rd.Season, &rd.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, &rd)
	}
	return redemptions, rows.Err()
}

// TryConsume atomically consumes one slot of code for walletAddress
func (r *postgresLedger) TryConsume(ctx context.Context, code, walletAddress string) (model.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Outcome{}, transient("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, setLockTimeoutSQL(r.lockTimeout)); err != nil {
		return model.Outcome{}, transient("set lock timeout", err)
	}

	rc, err := scanCode(tx.QueryRow(ctx, selectCodeSQL+" FOR UPDATE", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Outcome{Status: model.StatusUnknownCode}, nil
		}
		return model.Outcome{}, transient("lock code", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM code_redemptions
			WHERE code_id = $1 AND wallet_address = $2
		)
	`, rc.ID, walletAddress).Scan(&exists); err != nil {
		return model.Outcome{}, transient("check redemption", err)
	}
	if exists {
		return model.Outcome{Status: model.StatusAlreadyRedeemed, Capacity: rc.Capacity}, nil
	}
	if rc.ConsumedCount >= rc.Capacity {
		return model.Outcome{Status: model.StatusCapacityExhausted, Capacity: rc.Capacity}, nil
	}

	now := time.Now().UTC()
	redemption := &model.Redemption{
		ID:            uuid.NewString(),
		CodeID:        rc.ID,
		Code:          rc.Code,
		WalletAddress: walletAddress,
		Season:        rc.Season,
		RedeemedAt:    now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO code_redemptions (id, code_id, code, wallet_address, season, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, redemption.ID, redemption.CodeID, redemption.Code, redemption.WalletAddress, redemption.Season, redemption.RedeemedAt); err != nil {
		if isUniqueViolation(err) {
			return model.Outcome{Status: model.StatusAlreadyRedeemed, Capacity: rc.Capacity}, nil
		}
		return model.Outcome{}, transient("insert redemption", err)
	}

	var consumed int
	if err := tx.QueryRow(ctx, `
		UPDATE redemption_codes
		SET consumed_count = consumed_count + 1,
			updated_at = $2
		WHERE id = $1
		RETURNING consumed_count
	`, rc.ID, now).Scan(&consumed); err != nil {
		return model.Outcome{}, transient("increment consumed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Outcome{}, transient("commit", err)
	}

	return model.Outcome{
		Status:     model.StatusRedeemed,
		Remaining:  rc.Capacity - consumed,
		Capacity:   rc.Capacity,
		Redemption: redemption,
	}, nil
}

// setLockTimeoutSQL renders SET LOCAL lock_timeout, which does not accept
// bind parameters.
func setLockTimeoutSQL(d time.Duration) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())
}

const selectCodeSQL = `
	SELECT id, code, capacity, consumed_count, season, cooldown_period, created_at, updated_at
	FROM redemption_codes
	WHERE code = $1`

func scanCode(row pgx.Row) (*model.RedemptionCode, error) {
	var rc model.RedemptionCode
	var cooldown int64
	if err := row.Scan(&rc.ID, &rc.Code, &rc.Capacity, &rc.ConsumedCount, &rc.Season, &cooldown, &rc.CreatedAt, &rc.UpdatedAt); err != nil {
		return nil, err
	}
	rc.CooldownPeriod = time.Duration(cooldown)
	return &rc, nil
}
