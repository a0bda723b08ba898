package repository

import (
	"context"
	"time"
)

// AbuseTracker stores the velocity and device records the abuse gate reads.
// Each method is one atomic read-modify-write scoped to its key.
type AbuseTracker interface {
	// RecordAttempt records an attempt from ip at now and returns how many
	// attempts, including this one, fall inside the trailing window.
	RecordAttempt(ctx context.Context, ip string, now time.Time, window time.Duration) (int, error)

	// BindFingerprint associates wallet with fingerprint unless the
	// fingerprint is already bound to maxWallets other wallets. A wallet
	// already bound to the fingerprint is always accepted.
	BindFingerprint(ctx context.Context, fingerprint, wallet string, maxWallets int) (bool, error)
}
