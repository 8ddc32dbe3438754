// Package expansion turns one action template into a connected cluster
// of nodes and edges in a single logical operation.
package expansion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
)

// Deterministic cluster layout around the anchor position. Resources
// stack to the upper-left of the action, deliverables to its right.
const (
	resourceOffsetX    = -150.0
	resourceOffsetY    = 80.0
	resourceSpacingY   = 80.0
	deliverableOffsetX = 200.0
	deliverableStepY   = 80.0
)

// ErrAborted indicates the remote batch write failed and the expansion
// was rolled back: the visible graph is unchanged.
var ErrAborted = errors.New("template expansion aborted")

// Persister writes the whole cluster in one all-or-nothing batch.
type Persister interface {
	CreateBatch(ctx context.Context, workflowID string, nodes []*models.Node, edges []*models.Edge) error
}

// Build synthesizes the cluster for a template anchored at the given
// position, scoped to the given layer view. The first returned node is
// the ACTION anchor; the result always satisfies the count law
// 1+r+d nodes and r+d edges.
func Build(template *models.ActionTemplate, scope graph.Scope, anchor models.Position) ([]*models.Node, []*models.Edge) {
	nodes := make([]*models.Node, 0, 1+len(template.Resources)+len(template.Deliverables))
	edges := make([]*models.Edge, 0, len(template.Resources)+len(template.Deliverables))

	action := &models.Node{
		ID:           uuid.New().String(),
		WorkflowID:   scope.WorkflowID,
		Type:         models.NodeTypeAction,
		Layer:        scope.Layer,
		ParentNodeID: scope.ParentNodeID,
		Position:     anchor,
		Data: &models.ActionData{
			Title:          template.ActionName,
			Description:    template.Description,
			FromTemplateID: template.ID,
		},
	}
	nodes = append(nodes, action)

	for i, resource := range template.Resources {
		node := &models.Node{
			ID:           uuid.New().String(),
			WorkflowID:   scope.WorkflowID,
			Type:         models.NodeTypeResource,
			Layer:        scope.Layer,
			ParentNodeID: scope.ParentNodeID,
			Position: models.Position{
				X: anchor.X + resourceOffsetX,
				Y: anchor.Y + resourceOffsetY + resourceSpacingY*float64(i),
			},
			Data: &models.ResourceData{
				Title:        resource.Name,
				ResourceType: resource.ResourceType,
			},
		}
		nodes = append(nodes, node)

		edges = append(edges, &models.Edge{
			ID:         uuid.New().String(),
			WorkflowID: scope.WorkflowID,
			Source:     node.ID,
			Target:     action.ID,
			Layer:      scope.Layer,
		})
	}

	for i, deliverable := range template.Deliverables {
		node := &models.Node{
			ID:           uuid.New().String(),
			WorkflowID:   scope.WorkflowID,
			Type:         models.NodeTypeDeliverable,
			Layer:        scope.Layer,
			ParentNodeID: scope.ParentNodeID,
			Position: models.Position{
				X: anchor.X + deliverableOffsetX,
				Y: anchor.Y + deliverableStepY*float64(i),
			},
			Data: &models.DeliverableData{Title: deliverable},
		}
		nodes = append(nodes, node)

		edges = append(edges, &models.Edge{
			ID:         uuid.New().String(),
			WorkflowID: scope.WorkflowID,
			Source:     action.ID,
			Target:     node.ID,
			Layer:      scope.Layer,
		})
	}

	return nodes, edges
}

// Expander persists template clusters and reflects them into the store.
type Expander struct {
	persister Persister
}

// NewExpander creates an expander writing through the given persister.
func NewExpander(persister Persister) *Expander {
	return &Expander{persister: persister}
}

// Expand builds the cluster, persists it remotely, and only then applies
// it to the in-memory store as a single mutation. A failed write leaves
// the visible graph untouched.
func (e *Expander) Expand(ctx context.Context, store *graph.Store, template *models.ActionTemplate, anchor models.Position) ([]*models.Node, []*models.Edge, error) {
	scope := store.Scope()
	nodes, edges := Build(template, scope, anchor)

	if err := e.persister.CreateBatch(ctx, scope.WorkflowID, nodes, edges); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	if err := store.ApplyBatch(nodes, edges); err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}
