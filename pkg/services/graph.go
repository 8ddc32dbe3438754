package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flowboard/flowboard/pkg/eventbus"
	"github.com/flowboard/flowboard/pkg/events"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
	"github.com/flowboard/flowboard/pkg/schema"
)

// Graph implements the node and edge operations of one workflow.
type Graph struct {
	persistence persistence.Persistence
	validator   *schema.Validator
	events      *publisher
}

// NewGraph creates a graph service. The bus may be nil.
func NewGraph(logger *slog.Logger, store persistence.Persistence, bus eventbus.EventBus) (*Graph, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	return &Graph{
		persistence: store,
		validator:   validator,
		events:      &publisher{logger: logger.With("service", "graph"), bus: bus},
	}, nil
}

// NodesByScope lists the nodes of one layer view.
func (g *Graph) NodesByScope(ctx context.Context, scope persistence.GraphScope) ([]*models.Node, error) {
	if !scope.Layer.Valid() {
		return nil, NewValidationError("NodesByScope", "INVALID_LAYER",
			fmt.Sprintf("invalid layer '%s'", scope.Layer), ErrInvalidLayer)
	}

	return g.persistence.GraphRepository().NodesByScope(ctx, scope)
}

// EdgesByLayer lists a workflow's edges on one layer.
func (g *Graph) EdgesByLayer(ctx context.Context, workflowID string, layer models.Layer) ([]*models.Edge, error) {
	if !layer.Valid() {
		return nil, NewValidationError("EdgesByLayer", "INVALID_LAYER",
			fmt.Sprintf("invalid layer '%s'", layer), ErrInvalidLayer)
	}

	return g.persistence.GraphRepository().EdgesByLayer(ctx, workflowID, layer)
}

// CreateNodeRequest carries the fields of a single node create.
type CreateNodeRequest struct {
	Type         models.NodeType
	Layer        models.Layer
	ParentNodeID *string
	Position     models.Position
	Payload      map[string]any
}

// CreateNode validates and stores one node.
func (g *Graph) CreateNode(ctx context.Context, workflowID string, req CreateNodeRequest) (*models.Node, error) {
	if _, err := g.workflowExists(ctx, workflowID); err != nil {
		return nil, err
	}

	data, err := g.decodePayload(req.Type, req.Payload)
	if err != nil {
		return nil, err
	}

	node := &models.Node{
		ID:           uuid.New().String(),
		WorkflowID:   workflowID,
		Type:         req.Type,
		Layer:        req.Layer,
		ParentNodeID: req.ParentNodeID,
		Position:     req.Position,
		Data:         data,
	}

	if !node.Layer.Valid() {
		return nil, NewValidationError("CreateNode", "INVALID_LAYER",
			fmt.Sprintf("invalid layer '%s'", node.Layer), ErrInvalidLayer)
	}

	if !node.ParentConsistent() {
		return nil, NewValidationError("CreateNode", "PARENT_MISMATCH",
			"strategic nodes carry no parent, nested nodes require one", ErrParentMismatch)
	}

	if err := g.persistence.GraphRepository().SaveNode(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return node, nil
}

// UpdateNode merges a payload patch and position change into a node.
// The node type is fixed at creation.
func (g *Graph) UpdateNode(ctx context.Context, workflowID, nodeID string, position *models.Position, patch map[string]any) (*models.Node, error) {
	nodes, err := g.persistence.GraphRepository().AllNodes(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var node *models.Node

	for _, candidate := range nodes {
		if candidate.ID == nodeID {
			node = candidate

			break
		}
	}

	if node == nil {
		return nil, persistence.ErrNodeNotFound
	}

	if position != nil {
		node.Position = *position
	}

	if len(patch) > 0 {
		merged, err := models.MergeNodeData(node.Data, patch)
		if err != nil {
			return nil, NewValidationError("UpdateNode", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
		}

		if err := g.validatePayload(node.Type, merged); err != nil {
			return nil, err
		}

		node.Data = merged
	}

	if err := g.persistence.GraphRepository().SaveNode(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return node, nil
}

// DeleteNode removes a node, its incident edges and its whole nested
// sub-graph. Deleting an absent node is a no-op.
func (g *Graph) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	before, err := g.persistence.GraphRepository().AllNodes(ctx, workflowID)
	if err != nil {
		return err
	}

	if err := g.persistence.GraphRepository().DeleteNode(ctx, workflowID, nodeID); err != nil {
		if persistence.IsNodeNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to delete node: %w", err)
	}

	if g.events.enabled() {
		after, err := g.persistence.GraphRepository().AllNodes(ctx, workflowID)
		if err != nil {
			after = before
		}

		g.events.publish(ctx, workflowID, events.GraphNodeDeleted{
			BaseEvent:     g.events.base(events.GraphNodeDeletedEvent, workflowID),
			NodeID:        nodeID,
			CascadedNodes: len(before) - len(after),
		})
	}

	return nil
}

// CreateEdge validates and stores one edge. Both endpoints must exist
// on the same layer of the same workflow.
func (g *Graph) CreateEdge(ctx context.Context, workflowID, sourceID, targetID string) (*models.Edge, error) {
	nodes, err := g.persistence.GraphRepository().AllNodes(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var source, target *models.Node

	for _, node := range nodes {
		switch node.ID {
		case sourceID:
			source = node
		case targetID:
			target = node
		}
	}

	if source == nil || target == nil {
		return nil, NewValidationError("CreateEdge", "ENDPOINT_MISSING",
			"both edge endpoints must exist", ErrEndpointMissing)
	}

	if source.Layer != target.Layer {
		return nil, NewValidationError("CreateEdge", "CROSS_LAYER_EDGE",
			"edges never span layers", ErrCrossLayerEdge)
	}

	edge := &models.Edge{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Source:     sourceID,
		Target:     targetID,
		Layer:      source.Layer,
	}

	if err := g.persistence.GraphRepository().SaveEdge(ctx, edge); err != nil {
		return nil, fmt.Errorf("failed to save edge: %w", err)
	}

	return edge, nil
}

// DeleteEdge removes one edge. Deleting an absent edge is a no-op.
func (g *Graph) DeleteEdge(ctx context.Context, workflowID, edgeID string) error {
	err := g.persistence.GraphRepository().DeleteEdge(ctx, workflowID, edgeID)
	if err != nil && !persistence.IsEdgeNotFound(err) {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	return nil
}

func (g *Graph) workflowExists(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := g.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, nil
}

func (g *Graph) decodePayload(nodeType models.NodeType, payload map[string]any) (models.NodeData, error) {
	if !nodeType.Valid() {
		return nil, NewValidationError("decodePayload", "INVALID_NODE_TYPE",
			fmt.Sprintf("unknown node type '%s'", nodeType), ErrInvalidNodeType)
	}

	if err := g.validator.ValidatePayload(nodeType, payload); err != nil {
		return nil, NewValidationError("decodePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, NewValidationError("decodePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	data, err := models.DecodeNodeData(nodeType, raw)
	if err != nil {
		return nil, NewValidationError("decodePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	return data, nil
}

func (g *Graph) validatePayload(nodeType models.NodeType, data models.NodeData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return NewValidationError("validatePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	payload := make(map[string]any)
	if err := json.Unmarshal(raw, &payload); err != nil {
		return NewValidationError("validatePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	if err := g.validator.ValidatePayload(nodeType, payload); err != nil {
		return NewValidationError("validatePayload", "INVALID_PAYLOAD", err.Error(), ErrInvalidPayload)
	}

	return nil
}
