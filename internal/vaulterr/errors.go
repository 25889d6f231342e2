// Package vaulterr defines the error taxonomy shared by the vault core and its transports.
package vaulterr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports malformed or missing input to a write.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication reports a passphrase that does not match a record.
	ErrAuthentication = errors.New("authentication failed")
	// ErrDecryption reports ciphertext that cannot be decrypted with a correct passphrase.
	ErrDecryption = errors.New("decryption failed")
	// ErrSealed reports a read attempted while the cache is empty.
	ErrSealed = errors.New("vault is sealed")
	// ErrNotFound reports an unknown record or entry id.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied reports a caller excluded by policy or asking for an unknown id.
	ErrAccessDenied = errors.New("access denied")
	// ErrConflict reports a write race detected by the persistence layer.
	ErrConflict = errors.New("conflict")
)

// NewValidationError names the offending field.
func NewValidationError(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, msg)
}

// NewNotFoundError reports an unknown id of the given kind.
func NewNotFoundError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// NewConflictError wraps a persistence error that signals a concurrent write.
func NewConflictError(err error) error {
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

// Denied collapses cause into ErrAccessDenied while keeping it reachable
// through errors.Is for logging.
func Denied(cause error) error {
	if cause == nil {
		return ErrAccessDenied
	}
	return fmt.Errorf("%w: %w", ErrAccessDenied, cause)
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsDenial reports whether err must be shown to callers as a plain denial.
func IsDenial(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrSealed) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrNotFound)
}
