package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks precondition failures. Callers surface the
	// message verbatim as a client error.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is a fatal reference-data problem that must abort
	// a batch rather than produce wrong numbers.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedRollback is returned for transaction kinds that have
	// no reversal.
	ErrUnsupportedRollback = fmt.Errorf("%w: rollback not supported", ErrValidation)
)

// Invalidf builds a validation error.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
