// Package services provides the rule dispatch service and its error types.
package services

import (
	"errors"
	"fmt"
)

// Validation errors. These indicate client errors (4xx responses).
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRuleNil        = errors.New("rule cannot be nil")
	ErrEventNil       = errors.New("event cannot be nil")
	ErrJobNil         = errors.New("job cannot be nil")
)

// Execution errors, folded into results.
var (
	ErrJobExpired       = errors.New("job expired")
	ErrConditionInvalid = errors.New("rule condition failed")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrRuleNil) ||
		errors.Is(err, ErrEventNil) ||
		errors.Is(err, ErrJobNil)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
