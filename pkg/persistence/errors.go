// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error values all implementations return.
var (
	// ErrWorkflowNotFound indicates no workflow exists for the identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNodeNotFound indicates a node was not found by the given identifier.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates an edge was not found by the given identifier.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrTemplateNotFound indicates an action template was not found.
	ErrTemplateNotFound = errors.New("action template not found")

	// ErrVersionConflict indicates a batched save carried a stale workflow
	// version and was rejected instead of silently overwriting.
	ErrVersionConflict = errors.New("workflow version conflict")

	// ErrWorkflowAlreadyExists indicates a workflow with the same
	// identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")
)

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g. "GetByID", "Save")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// GraphError wraps node/edge errors with operation context.
type GraphError struct {
	Op         string
	WorkflowID string
	ElementID  string // Node or edge ID
	Err        error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("%s operation failed for %s in workflow %s: %v", e.Op, e.ElementID, e.WorkflowID, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func (e *GraphError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewGraphError creates a graph error with context.
func NewGraphError(op, workflowID, elementID string, err error) *GraphError {
	return &GraphError{Op: op, WorkflowID: workflowID, ElementID: elementID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsNodeNotFound checks if an error indicates a missing node.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsEdgeNotFound checks if an error indicates a missing edge.
func IsEdgeNotFound(err error) bool {
	return errors.Is(err, ErrEdgeNotFound)
}

// IsTemplateNotFound checks if an error indicates a missing template.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsVersionConflict checks if an error indicates a stale-version batch
// save rejection.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
