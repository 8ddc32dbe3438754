// Package services implements the API-side operations over the
// persistence layer: workflow documents, graph scopes, batch saves and
// the template catalog.
package services

import (
	"errors"
	"fmt"

	"github.com/flowboard/flowboard/pkg/persistence"
)

// Business logic errors. Validation errors map to 400 responses,
// conflicts to 409.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidSortField   = errors.New("invalid sort field")
	ErrInvalidSortOrder   = errors.New("invalid sort order")
	ErrInvalidAccessLevel = errors.New("invalid access level")
	ErrInvalidNodeType    = errors.New("invalid node type")
	ErrInvalidPayload     = errors.New("invalid node payload")
	ErrInvalidLayer       = errors.New("invalid layer")
	ErrParentMismatch     = errors.New("node parent does not match scope")
	ErrEndpointMissing    = errors.New("edge endpoint does not exist")
	ErrCrossLayerEdge     = errors.New("edge endpoints span layers")
	ErrWorkflowMismatch   = errors.New("element belongs to another workflow")
)

// ServiceError wraps service-level errors with operation context.
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

// IsValidationError checks whether an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidAccessLevel) ||
		errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidLayer) ||
		errors.Is(err, ErrParentMismatch) ||
		errors.Is(err, ErrEndpointMissing) ||
		errors.Is(err, ErrCrossLayerEdge) ||
		errors.Is(err, ErrWorkflowMismatch)
}

// IsConflictError checks whether an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return persistence.IsVersionConflict(err)
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
