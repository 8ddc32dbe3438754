package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowboard/flowboard/pkg/eventbus"
	"github.com/flowboard/flowboard/pkg/events"
	"github.com/flowboard/flowboard/pkg/expansion"
	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// Template implements the action template catalog and server-side
// expansion.
type Template struct {
	persistence persistence.Persistence
	events      *publisher
}

// NewTemplate creates a template service. The bus may be nil.
func NewTemplate(logger *slog.Logger, store persistence.Persistence, bus eventbus.EventBus) *Template {
	return &Template{
		persistence: store,
		events:      &publisher{logger: logger.With("service", "template"), bus: bus},
	}
}

// List returns the template catalog.
func (t *Template) List(ctx context.Context) ([]*models.ActionTemplate, error) {
	return t.persistence.TemplateRepository().ListTemplates(ctx)
}

// Get returns one template.
func (t *Template) Get(ctx context.Context, id string) (*models.ActionTemplate, error) {
	return t.persistence.TemplateRepository().GetTemplate(ctx, id)
}

// ExpandRequest places a template into one layer view at an anchor
// position.
type ExpandRequest struct {
	TemplateID   string
	Layer        models.Layer
	ParentNodeID *string
	Anchor       models.Position
}

// ExpandResult is the persisted cluster.
type ExpandResult struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// Expand builds the template's cluster and persists it in one batch.
func (t *Template) Expand(ctx context.Context, workflowID string, req ExpandRequest) (*ExpandResult, error) {
	if !req.Layer.Valid() {
		return nil, NewValidationError("Expand", "INVALID_LAYER",
			fmt.Sprintf("invalid layer '%s'", req.Layer), ErrInvalidLayer)
	}

	if req.Layer != models.LayerStrategic && req.ParentNodeID == nil {
		return nil, NewValidationError("Expand", "PARENT_MISMATCH",
			"nested layer views require a parent node", ErrParentMismatch)
	}

	workflow, err := t.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	template, err := t.persistence.TemplateRepository().GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	scope := graph.Scope{WorkflowID: workflowID, Layer: req.Layer, ParentNodeID: req.ParentNodeID}
	nodes, edges := expansion.Build(template, scope, req.Anchor)

	if err := t.persistence.GraphRepository().CreateBatch(ctx, workflowID, nodes, edges); err != nil {
		return nil, fmt.Errorf("failed to persist expansion: %w", err)
	}

	if t.events.enabled() {
		t.events.publish(ctx, workflowID, events.TemplateExpanded{
			BaseEvent:    t.events.base(events.TemplateExpandedEvent, workflowID),
			TemplateID:   template.ID,
			ActionNodeID: nodes[0].ID,
			NodeCount:    len(nodes),
			EdgeCount:    len(edges),
		})
	}

	return &ExpandResult{Nodes: nodes, Edges: edges}, nil
}

// CreateBatch persists an externally built cluster, used by clients that
// expand templates locally.
func (t *Template) CreateBatch(ctx context.Context, workflowID string, nodes []*models.Node, edges []*models.Edge) error {
	workflow, err := t.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.ErrWorkflowNotFound
	}

	if err := t.persistence.GraphRepository().CreateBatch(ctx, workflowID, nodes, edges); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}

	return nil
}
