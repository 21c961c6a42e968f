package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal server error")
	ErrSessionExpired = errors.New("session expired or invalid")
)

// Service desk errors
var (
	// ErrRoutingUnresolved means a ticket cannot be routed because the equipment has no
	// customer or the customer has no assigned technician.
	ErrRoutingUnresolved = errors.New("routing unresolved")

	ErrDuplicateSerial     = errors.New("duplicate equipment serial")
	ErrConstraintViolation = errors.New("store constraint violation")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidTransition   = errors.New("invalid ticket state transition")

	// ErrTransientFetch wraps any failed read against the store.
	ErrTransientFetch = errors.New("store fetch failed")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
