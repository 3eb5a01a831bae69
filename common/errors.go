// Package common provides shared constants, types, and utilities
// used across the SSH T client.
package common

import "errors"

// Sentinel errors.
// These can be checked with errors.Is() for proper error handling.
var (
	// Tunnel errors.
	ErrAlreadyConnected = errors.New("tunnel already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("operation cancelled")
	ErrNoActiveProfile  = errors.New("no active profile selected")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile data")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Host errors.
	ErrHostUnavailable = errors.New("host bridge unavailable")
	ErrUnsupported     = errors.New("capability not supported by host")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
