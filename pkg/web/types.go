// Package web provides the HTTP handlers and request types of the
// workflow graph API.
package web

import "github.com/flowboard/flowboard/pkg/models"

// CreateWorkflowRequest is the body of POST /workflows.
type CreateWorkflowRequest struct {
	Name        string             `json:"name"         validate:"required,min=3"`
	Description string             `json:"description"`
	AccessLevel models.AccessLevel `json:"access_level" validate:"omitempty,oneof=public private"`
	Owner       string             `json:"owner"`
}

// UpdateWorkflowRequest is the body of PATCH /workflows/:id. All fields
// are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string             `json:"name,omitempty"         validate:"omitempty,min=3"`
	Description *string             `json:"description,omitempty"`
	AccessLevel *models.AccessLevel `json:"access_level,omitempty" validate:"omitempty,oneof=public private"`
}

// CreateNodeRequest is the body of POST /workflows/:id/nodes. Data is
// validated against the node type's payload schema.
type CreateNodeRequest struct {
	NodeType     models.NodeType `json:"node_type" validate:"required"`
	Layer        models.Layer    `json:"layer"     validate:"required"`
	ParentNodeID *string         `json:"parent_node_id,omitempty"`
	Position     models.Position `json:"position"`
	Data         map[string]any  `json:"data"`
}

// UpdateNodeRequest is the body of PATCH /workflows/:id/nodes/:nodeId.
// The node type is fixed at creation; Data is a partial payload overlay.
type UpdateNodeRequest struct {
	Position *models.Position `json:"position,omitempty"`
	Data     map[string]any   `json:"data,omitempty"`
}

// CreateEdgeRequest is the body of POST /workflows/:id/edges.
type CreateEdgeRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// BatchSaveRequest is the body of POST /workflows/:id/batch-save: the
// full snapshot of one layer view, saved at a known workflow version.
type BatchSaveRequest struct {
	Layer        models.Layer    `json:"layer"   validate:"required"`
	ParentNodeID *string         `json:"parent_node_id,omitempty"`
	Version      int64           `json:"version" validate:"min=0"`
	Nodes        []*models.Node  `json:"nodes"`
	Edges        []*models.Edge  `json:"edges"`
}

// BatchSaveResponse returns the bumped workflow version.
type BatchSaveResponse struct {
	Version int64 `json:"version"`
}

// CreateBatchRequest is the body of POST /workflows/:id/batch: a
// client-built cluster stored in one step.
type CreateBatchRequest struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// ExpandTemplateRequest is the body of POST /workflows/:id/expand.
type ExpandTemplateRequest struct {
	TemplateID   string          `json:"template_id" validate:"required"`
	Layer        models.Layer    `json:"layer"       validate:"required"`
	ParentNodeID *string         `json:"parent_node_id,omitempty"`
	Position     models.Position `json:"position"`
}
