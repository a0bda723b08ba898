package errors

import "errors"

// Domain errors for the redemption system.
//
// Definitive redemption outcomes (already redeemed, exhausted, unknown code)
// are not errors; they travel as model.Outcome values. Errors here cover
// admin paths, malformed input and failures that are worth retrying.
var (
	ErrCodeNotFound      = errors.New("redemption code not found")
	ErrCodeAlreadyExists = errors.New("redemption code already exists")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrTransient         = errors.New("temporarily unavailable, try again")
)

// IsTransient reports whether err is eligible for a caller-side retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
