package models

import (
	"context"
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across layers
var (
	ErrValidation           = errors.New("validation error")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrNotFound             = errors.New("not found")
	ErrPersistence          = errors.New("persistence error")
)

// ValidationError represents bad input shape or range. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateTransactionError is returned when an external reference was
// already recorded and cannot be replayed for the caller.
type DuplicateTransactionError struct {
	ExternalRef string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %q already recorded", e.ExternalRef)
}

func (e *DuplicateTransactionError) Is(target error) bool {
	return target == ErrDuplicateTransaction
}

// NotFoundError is returned when a referenced user or tier does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PersistenceError wraps a storage failure. Retryable failures (timeouts,
// lost connections) may be retried by the caller with backoff.
type PersistenceError struct {
	Op        string
	Retryable bool
	Err       error
}

// NewPersistenceError wraps err, marking deadline expiry as retryable
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{
		Op:        op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IsRetryable reports whether err is a persistence failure worth retrying
func IsRetryable(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Retryable
}
