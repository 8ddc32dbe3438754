package models

// Edge is a directed connection between two nodes. Both endpoints always
// live on the edge's own layer; an edge never crosses layers.
type Edge struct {
	ID         string `json:"id"          validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	Source     string `json:"source"      validate:"required"`
	Target     string `json:"target"      validate:"required"`
	Layer      Layer  `json:"layer"       validate:"required"`
}

// Touches reports whether the edge has the given node as either endpoint.
func (e *Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	clone := *e

	return &clone
}
