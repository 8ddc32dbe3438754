package services

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/pkg/events"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// SaveScope is the batched autosave write: it atomically replaces one
// layer view's node/edge set. The supplied version must match the
// workflow's current version or the write is rejected with
// persistence.ErrVersionConflict; the accepted write returns the bumped
// version.
func (g *Graph) SaveScope(ctx context.Context, scope persistence.GraphScope, version int64, nodes []*models.Node, edges []*models.Edge) (int64, error) {
	if !scope.Layer.Valid() {
		return 0, NewValidationError("SaveScope", "INVALID_LAYER",
			fmt.Sprintf("invalid layer '%s'", scope.Layer), ErrInvalidLayer)
	}

	if err := g.validateScopeElements(scope, nodes, edges); err != nil {
		return 0, err
	}

	newVersion, err := g.persistence.GraphRepository().ReplaceScope(ctx, scope, version, nodes, edges)
	if err != nil {
		if persistence.IsVersionConflict(err) {
			return 0, err
		}

		return 0, fmt.Errorf("failed to save scope: %w", err)
	}

	if g.events.enabled() {
		g.events.publish(ctx, scope.WorkflowID, events.GraphBatchSaved{
			BaseEvent:    g.events.base(events.GraphBatchSavedEvent, scope.WorkflowID),
			Layer:        scope.Layer,
			ParentNodeID: scope.ParentNodeID,
			Version:      newVersion,
			NodeCount:    len(nodes),
			EdgeCount:    len(edges),
		})
	}

	return newVersion, nil
}

func (g *Graph) validateScopeElements(scope persistence.GraphScope, nodes []*models.Node, edges []*models.Edge) error {
	inScope := make(map[string]*models.Node, len(nodes))

	for _, node := range nodes {
		if node.WorkflowID != scope.WorkflowID {
			return NewValidationError("SaveScope", "WORKFLOW_MISMATCH",
				fmt.Sprintf("node %s belongs to workflow %s", node.ID, node.WorkflowID), ErrWorkflowMismatch)
		}

		if node.Layer != scope.Layer {
			return NewValidationError("SaveScope", "INVALID_LAYER",
				fmt.Sprintf("node %s is on layer %s, scope is %s", node.ID, node.Layer, scope.Layer), ErrInvalidLayer)
		}

		if !sameParent(node.ParentNodeID, scope.ParentNodeID) {
			return NewValidationError("SaveScope", "PARENT_MISMATCH",
				fmt.Sprintf("node %s does not belong to the scope's parent", node.ID), ErrParentMismatch)
		}

		if !node.Type.Valid() {
			return NewValidationError("SaveScope", "INVALID_NODE_TYPE",
				fmt.Sprintf("node %s has unknown type '%s'", node.ID, node.Type), ErrInvalidNodeType)
		}

		if err := g.validatePayload(node.Type, node.Data); err != nil {
			return err
		}

		inScope[node.ID] = node
	}

	for _, edge := range edges {
		if edge.WorkflowID != scope.WorkflowID {
			return NewValidationError("SaveScope", "WORKFLOW_MISMATCH",
				fmt.Sprintf("edge %s belongs to workflow %s", edge.ID, edge.WorkflowID), ErrWorkflowMismatch)
		}

		if edge.Layer != scope.Layer {
			return NewValidationError("SaveScope", "INVALID_LAYER",
				fmt.Sprintf("edge %s is on layer %s, scope is %s", edge.ID, edge.Layer, scope.Layer), ErrInvalidLayer)
		}

		if _, ok := inScope[edge.Source]; !ok {
			return NewValidationError("SaveScope", "ENDPOINT_MISSING",
				fmt.Sprintf("edge %s references missing source %s", edge.ID, edge.Source), ErrEndpointMissing)
		}

		if _, ok := inScope[edge.Target]; !ok {
			return NewValidationError("SaveScope", "ENDPOINT_MISSING",
				fmt.Sprintf("edge %s references missing target %s", edge.ID, edge.Target), ErrEndpointMissing)
		}
	}

	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}
