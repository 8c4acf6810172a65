package otp

import "errors"

var (
	ErrValidation        = errors.New("malformed email or code")
	ErrNotFound          = errors.New("no code issued for email")
	ErrMismatch          = errors.New("code does not match")
	ErrAlreadyUsed       = errors.New("code already used")
	ErrExpired           = errors.New("code expired")
	ErrPersistenceFailed = errors.New("failed to persist code")
	ErrDeliveryFailed    = errors.New("failed to deliver code")
)

// IsVerificationFailure reports whether err is one of the outcomes a caller
// must present as a single "invalid or expired code" response.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMismatch) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrExpired)
}

// Kind names the failure for logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery"
	default:
		return "internal"
	}
}
