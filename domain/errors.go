package domain

import "github.com/cockroachdb/errors"

// Error classes returned by the core. Callers inspect them with errors.Is;
// the concrete error always carries a more specific message.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")

	// ErrTransient marks storage failures. Nothing was persisted, so the call is safe to retry.
	ErrTransient = errors.New("transient storage failure")
)

// Validationf returns an ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFoundf returns an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Conflictf returns an ErrConflict with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

// IsDomainError reports whether err belongs to the taxonomy above.
func IsDomainError(err error) bool {
	return errors.IsAny(err, ErrValidation, ErrNotFound, ErrUnauthorized, ErrForbidden, ErrConflict, ErrTransient)
}

// Transient marks err as a retryable storage failure. Domain errors pass through untouched.
func Transient(err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return errors.Mark(err, ErrTransient)
}
