package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidDifficulty is returned for a difficulty outside the three tiers.
	ErrInvalidDifficulty = errors.New("invalid difficulty")

	// ErrInvalidOptions is returned when a question's answer options are unusable.
	ErrInvalidOptions = errors.New("invalid answer options")

	// ErrInvalidCapacity is returned when topic counters violate the ledger rules.
	ErrInvalidCapacity = errors.New("invalid capacity state")

	// ErrNoSourceMaterial is returned when a topic has nothing to generate from.
	ErrNoSourceMaterial = errors.New("topic has no source material")
)

// ValidationError describes a single failed field check.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError wrapping err.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}
