package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate duplicate record
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidSignature webhook signature verification failed
	ErrInvalidSignature = errors.New("invalid signature key")

	// ErrInvalidState entity is in a state the operation does not permit
	ErrInvalidState = errors.New("invalid state")

	// ErrPlanNotLinked payment has no linked subscription plan
	ErrPlanNotLinked = errors.New("payment has no linked subscription plan")

	// ErrGatewayUnavailable outbound gateway call failed, retryable by the caller
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// GatewayError wraps a failure reported by or while reaching the payment
// gateway
type GatewayError struct {
	Gateway     string
	StatusCode  string
	Message     string
	OriginalErr error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s gateway error [%s]: %s: %v", e.Gateway, e.StatusCode, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s gateway error [%s]: %s", e.Gateway, e.StatusCode, e.Message)
}

// Unwrap returns the original error
func (e *GatewayError) Unwrap() error {
	return e.OriginalErr
}

// Is makes all gateway errors match ErrGatewayUnavailable
func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

// NewGatewayError creates a new gateway error
func NewGatewayError(gateway, statusCode, message string, err error) *GatewayError {
	return &GatewayError{
		Gateway:     gateway,
		StatusCode:  statusCode,
		Message:     message,
		OriginalErr: err,
	}
}

// NotFoundError reports a missing entity by name and identifier
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is checks whether the target is ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new "not found" error
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}
