package service

import "fmt"

// LedgerServiceError is a custom error type for ledger service errors.
type LedgerServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for LedgerServiceError.
func (e *LedgerServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("ledger service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *LedgerServiceError) Unwrap() error {
	return e.Err
}

// NewLedgerServiceError creates a new LedgerServiceError.
func NewLedgerServiceError(operation, message string, err error) *LedgerServiceError {
	return &LedgerServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
