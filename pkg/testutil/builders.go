// Package testutil provides test data builders shared by package tests.
package testutil

import (
	"github.com/google/uuid"

	"github.com/flowboard/flowboard/pkg/models"
)

// CreateTestNode builds a STRATEGIC issue node with default values that
// can be overridden.
func CreateTestNode(workflowID string, overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Type:       models.NodeTypeIssue,
		Layer:      models.LayerStrategic,
		Position:   models.Position{X: 100, Y: 200},
		Data:       &models.IssueData{Title: "Test Issue"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithType sets the node type and swaps in a matching default payload.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType

		switch nodeType {
		case models.NodeTypeIssue:
			n.Data = &models.IssueData{Title: "Test Issue"}
		case models.NodeTypeAction:
			n.Data = &models.ActionData{Title: "Test Action"}
		case models.NodeTypeResource:
			n.Data = &models.ResourceData{Title: "Test Resource"}
		case models.NodeTypeDeliverable:
			n.Data = &models.DeliverableData{Title: "Test Deliverable"}
		case models.NodeTypeStickyNote:
			n.Data = &models.StickyNoteData{Text: "Test note"}
		case models.NodeTypeTask:
			n.Data = &models.TaskData{Title: "Test Task"}
		case models.NodeTypeBlocker:
			n.Data = &models.BlockerData{Title: "Test Blocker"}
		}
	}
}

// WithScope places the node in a nested layer under a parent action.
func WithScope(layer models.Layer, parentNodeID string) func(*models.Node) {
	return func(n *models.Node) {
		n.Layer = layer
		n.ParentNodeID = &parentNodeID
	}
}

// WithPosition sets the canvas position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// CreateTestEdge connects two nodes on a layer.
func CreateTestEdge(workflowID, source, target string, layer models.Layer) *models.Edge {
	return &models.Edge{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Source:     source,
		Target:     target,
		Layer:      layer,
	}
}

// CreateTestTemplate builds an action template with the given number of
// resources and deliverables.
func CreateTestTemplate(resources, deliverables int) *models.ActionTemplate {
	template := &models.ActionTemplate{
		ID:         uuid.New().String(),
		ActionName: "Test Action",
		Category:   "testing",
	}

	for i := 0; i < resources; i++ {
		template.Resources = append(template.Resources, models.ResourceDescriptor{
			Name: "Resource " + uuid.New().String()[:8],
		})
	}

	for i := 0; i < deliverables; i++ {
		template.Deliverables = append(template.Deliverables, "Deliverable "+uuid.New().String()[:8])
	}

	return template
}
