package repository

import (
	"context"
	"errors"
	"fmt"
	apperrors "redemption-gate/pkg/errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the ledger reacts to.
const (
	pgUniqueViolation     = "23505"
	pgLockNotAvailable    = "55P03"
	pgSerializationFailed = "40001"
	pgDeadlockDetected    = "40P01"
	pgQueryCanceled       = "57014"
)

// errRollback aborts a transaction whose outcome has already been decided.
var errRollback = errors.New("rollback: outcome decided")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailed, pgDeadlockDetected, pgQueryCanceled:
			return true
		}
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// transient marks a storage failure as retryable. Once the input has been
// validated, nothing the store reports can be a definitive verdict.
func transient(op string, err error) error {
	if isLockTimeout(err) {
		return fmt.Errorf("%w: %s: lock wait timed out: %w", apperrors.ErrTransient, op, err)
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrTransient, op, err)
}
