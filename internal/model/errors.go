package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
)

// Validation kinds.
const (
	KindEmptyInput    = "empty_input"
	KindWeakPassword  = "weak_password"
	KindMissingField  = "missing_field"
	KindInvalidFormat = "invalid_format"
)

// ValidationError is reported to the caller without retry.
type ValidationError struct {
	Kind    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(kind, field, message string) ValidationError {
	return ValidationError{Kind: kind, Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ConflictError represents a unique constraint violation on Field.
type ConflictError struct {
	Field   string
	Message string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Field, e.Message)
}

// NewConflictError constructs ConflictError
func NewConflictError(field, message string) ConflictError {
	return ConflictError{Field: field, Message: message}
}

// IsConflictError checks if error is ConflictError
func IsConflictError(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// ConflictField returns the conflicting field, or "" when err is not a ConflictError.
func ConflictField(err error) string {
	var ce ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// AuthError never says which credential part was wrong.
type AuthError struct{}

func (AuthError) Error() string { return "invalid username or password" }

// ErrInvalidCredentials is the only AuthError value.
var ErrInvalidCredentials = AuthError{}

// IsAuthError checks if error is AuthError
func IsAuthError(err error) bool {
	var ae AuthError
	return errors.As(err, &ae)
}

// StorageError wraps an I/O failure of the operation Op.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err; nil stays nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return StorageError{Op: op, Err: err}
}

// IsStorageError checks if error is StorageError
func IsStorageError(err error) bool {
	var se StorageError
	return errors.As(err, &se)
}

// CollaboratorError is a failed or timed-out model call. It never leaves the companion package.
type CollaboratorError struct {
	Err error
}

func (e CollaboratorError) Error() string { return "model collaborator: " + e.Err.Error() }

func (e CollaboratorError) Unwrap() error { return e.Err }

// IsCollaboratorError checks if error is CollaboratorError
func IsCollaboratorError(err error) bool {
	var ce CollaboratorError
	return errors.As(err, &ce)
}
