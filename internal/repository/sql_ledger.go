package repository

import (
	"context"
	"errors"
	"fmt"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sqlLedger implements LedgerRepository with gorm on sqlite or postgres.
//
// It uses the conditional-update strategy: the redemption row is inserted
// under the (code_id, wallet_address) unique constraint, then the counter is
// bumped with "consumed_count < capacity" in the WHERE clause. A zero
// rows-affected result rolls the insert back, so the row and the increment
// always commit together.
type sqlLedger struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// MigrateSQL creates or updates the ledger tables.
func MigrateSQL(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.RedemptionCode{}, &model.Redemption{}); err != nil {
		return fmt.Errorf("db: migrate ledger: %w", err)
	}
	return nil
}

// NewSQLLedger creates a gorm-backed ledger
func NewSQLLedger(db *gorm.DB, lockTimeout time.Duration) LedgerRepository {
	return &sqlLedger{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

// CreateCode creates a new redemption code
func (r *sqlLedger) CreateCode(ctx context.Context, code *model.RedemptionCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrCodeAlreadyExists
		}
		return err
	}
	return nil
}

// GetCode retrieves a code by its normalized value
func (r *sqlLedger) GetCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	var rc model.RedemptionCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCodeNotFound
		}
		return nil, err
	}
	return &rc, nil
}

// ListRedemptions retrieves all redemptions recorded against a code
func (r *sqlLedger) ListRedemptions(ctx context.Context, code string) ([]*model.Redemption, error) {
	var redemptions []*model.Redemption
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		Order("redeemed_at ASC").
		Find(&redemptions).Error; err != nil {
		return nil, err
	}
	return redemptions, nil
}

// TryConsume atomically consumes one slot of code for walletAddress
func (r *sqlLedger) TryConsume(ctx context.Context, code, walletAddress string) (model.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	var outcome model.Outcome
	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rc model.RedemptionCode
		if err := tx.Where("code = ?", code).First(&rc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = model.Outcome{Status: model.StatusUnknownCode}
				return nil
			}
			return err
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
		if err := tx.Create(redemption).Error; err != nil {
			if isUniqueViolation(err) {
				outcome = model.Outcome{Status: model.StatusAlreadyRedeemed, Capacity: rc.Capacity}
				return errRollback
			}
			return err
		}

		result := tx.Model(&model.RedemptionCode{}).
			Where("id = ? AND consumed_count < capacity", rc.ID).
			Updates(map[string]any{
				"consumed_count": gorm.Expr("consumed_count + 1"),
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = model.Outcome{Status: model.StatusCapacityExhausted, Capacity: rc.Capacity}
			return errRollback
		}

		// Read back under the row lock taken by the update above.
		var consumed int
		if err := tx.Model(&model.RedemptionCode{}).
			Select("consumed_count").
			Where("id = ?", rc.ID).
			Row().Scan(&consumed); err != nil {
			return err
		}

		outcome = model.Outcome{
			Status:     model.StatusRedeemed,
			Remaining:  rc.Capacity - consumed,
			Capacity:   rc.Capacity,
			Redemption: redemption,
		}
		return nil
	})
	if errTx != nil && !errors.Is(errTx, errRollback) {
		return model.Outcome{}, transient("try consume", errTx)
	}
	return outcome, nil
}
