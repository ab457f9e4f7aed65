// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/certflow/pkg/otelhelper"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/dukex/certflow/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInvalidSortField       = errors.New("invalid sort field")
	ErrInvalidSortOrder       = errors.New("invalid sort order")
	ErrWorkflowNameRequired   = errors.New("workflow name is required")
	ErrInvalidOutputReference = errors.New("invalid output reference")

	// Business Logic Conflicts (409 Conflict).
	ErrNoDraft = errors.New("workflow has no unreleased draft")

	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
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
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrInvalidOutputReference) ||
		errors.Is(err, persistence.ErrInvalidSortField) ||
		errors.Is(err, persistence.ErrInvalidSortOrder) ||
		errors.Is(err, registry.ErrActionTypeNotRegistered) ||
		errors.Is(err, registry.ErrInvalidActionConfig) ||
		workflow.IsStructuralError(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || workflow.IsNodeNotFound(err)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNoDraft) || persistence.IsConcurrentUpdate(err)
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

func errorKind(err error) string {
	switch {
	case IsNotFoundError(err):
		return "not_found"
	case IsValidationError(err):
		return "validation"
	case IsConflictError(err):
		return "conflict"
	default:
		return "internal"
	}
}

func recordError(span trace.Span, err error) {
	otelhelper.SetError(span, err, attribute.String(otelhelper.ErrorKindKey, errorKind(err)))
}
