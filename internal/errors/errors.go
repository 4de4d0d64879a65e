package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the auth session lifecycle
var (
	// ErrNetwork is a failed call to the auth backend. It is never retried automatically.
	ErrNetwork = errors.New("network error")
	// ErrNoSession means the user is logged out. It is a normal outcome, not a failure.
	ErrNoSession = errors.New("no active session")
	// ErrTimeout is returned by the callback flow when a session never materialises.
	ErrTimeout = errors.New("timed out waiting for session")
	// ErrValidation is a client-side input error. It never reaches the backend.
	ErrValidation = errors.New("validation failed")

	// Broker errors
	ErrUnknownSubscription = errors.New("unknown subscription")

	// OAuth errors
	ErrProviderNotSupported = errors.New("identity provider not supported")
	ErrInvalidState         = errors.New("invalid state parameter")
	ErrAccessDenied         = errors.New("access denied by identity provider")
	ErrProviderRejected     = errors.New("identity provider returned an error")

	// Backend errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncompleteSession  = errors.New("backend returned an incomplete session")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}

// Code returns a stable, machine readable code for the taxonomy error in err's chain.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrProviderRejected):
		return "provider_error"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrProviderNotSupported):
		return "provider_not_supported"
	default:
		return "internal_error"
	}
}
