package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresTracker implements AbuseTracker with pgx. The IP path locks its
// ip_tracking row through an upsert; the fingerprint path takes a
// transaction-scoped advisory lock on the fingerprint hash.
type postgresTracker struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresTracker creates a pgx-backed abuse tracker. Connection and
// lock waits longer than lockTimeout fail with ErrTransient.
func NewPostgresTracker(pool *pgxpool.Pool, lockTimeout time.Duration) AbuseTracker {
	return &postgresTracker{
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

// begin opens a transaction whose connection wait and lock waits are both
// bounded by lockTimeout.
func (t *postgresTracker) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, transient("begin tx", err)
	}
	if _, err := tx.Exec(ctx, setLockTimeoutSQL(t.lockTimeout)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, transient("set lock timeout", err)
	}
	return tx, nil
}

// RecordAttempt records an attempt and counts attempts in the trailing window
func (t *postgresTracker) RecordAttempt(ctx context.Context, ip string, now time.Time, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.lockTimeout)
	defer cancel()

	tx, err := t.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// The upsert holds the row lock until commit, serializing this IP.
	if _, err := tx.Exec(ctx, `
		INSERT INTO ip_tracking (ip_address, attempt_count, last_attempt, created_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (ip_address)
		DO UPDATE SET last_attempt = EXCLUDED.last_attempt
	`, ip, now); err != nil {
		return 0, transient("lock ip", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM ip_attempts
		WHERE ip_address = $1 AND attempted_at <= $2
	`, ip, now.Add(-window)); err != nil {
		return 0, transient("prune attempts", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO ip_attempts (ip_address, attempted_at)
		VALUES ($1, $2)
	`, ip, now); err != nil {
		return 0, transient("insert attempt", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `
		UPDATE ip_tracking
		SET attempt_count = (SELECT COUNT(*) FROM ip_attempts WHERE ip_address = $1)
		WHERE ip_address = $1
		RETURNING attempt_count
	`, ip).Scan(&count); err != nil {
		return 0, transient("count attempts", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, transient("commit", err)
	}
	return count, nil
}

// BindFingerprint binds wallet to fingerprint within the fan-out limit
func (t *postgresTracker) BindFingerprint(ctx context.Context, fingerprint, wallet string, maxWallets int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.lockTimeout)
	defer cancel()

	tx, err := t.begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, fingerprint); err != nil {
		return false, transient("lock fingerprint", err)
	}

	var bound bool
	var total int
	if err := tx.QueryRow(ctx, `
		SELECT
			COALESCE(BOOL_OR(wallet_address = $2), FALSE),
			COUNT(*)
		FROM device_fingerprints
		WHERE fingerprint_hash = $1
	`, fingerprint, wallet).Scan(&bound, &total); err != nil {
		return false, transient("read fingerprint", err)
	}
	if bound {
		return true, nil
	}
	if total >= maxWallets {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO device_fingerprints (fingerprint_hash, wallet_address, created_at)
		VALUES ($1, $2, $3)
	`, fingerprint, wallet, time.Now().UTC()); err != nil {
		return false, transient("bind fingerprint", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, transient("commit", err)
	}
	return true, nil
}
