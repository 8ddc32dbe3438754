// Package models defines the core domain models for the hierarchical
// workflow graph engine.
package models

import "time"

// AccessLevel controls workflow visibility inside the dashboard.
type AccessLevel string

const (
	AccessLevelPublic  AccessLevel = "public"
	AccessLevelPrivate AccessLevel = "private"
)

// Workflow is a top-level workflow document. It transitively owns every
// node and edge across all three layers; deleting it cascades.
type Workflow struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"         validate:"required,min=3"`
	Description string      `json:"description"`
	AccessLevel AccessLevel `json:"access_level" validate:"required,oneof=public private"`
	Version     int64       `json:"version"` // Bumped on every accepted batch save
	Owner       string      `json:"owner"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// WorkflowDocument is the full export form of a workflow: the document
// plus every node and edge it owns, across all layers.
type WorkflowDocument struct {
	Workflow *Workflow `json:"workflow"`
	Nodes    []*Node   `json:"nodes"`
	Edges    []*Edge   `json:"edges"`
}
