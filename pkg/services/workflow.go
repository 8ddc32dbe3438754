package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowboard/flowboard/pkg/eventbus"
	"github.com/flowboard/flowboard/pkg/events"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow implements the workflow document operations.
type Workflow struct {
	persistence persistence.Persistence
	events      *publisher
}

// NewWorkflow creates a new workflow service. The bus may be nil; the
// service then skips event publishing.
func NewWorkflow(logger *slog.Logger, persistence persistence.Persistence, bus eventbus.EventBus) *Workflow {
	return &Workflow{
		persistence: persistence,
		events:      &publisher{logger: logger.With("service", "workflow"), bus: bus},
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int
	Offset int

	OwnerID     string
	AccessLevel *models.AccessLevel

	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting and
// pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListWorkflowsOptions{
		Limit:       req.Limit,
		Offset:      req.Offset,
		OwnerID:     req.OwnerID,
		AccessLevel: req.AccessLevel,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.AccessLevel != nil {
		allowed := []models.AccessLevel{models.AccessLevelPublic, models.AccessLevelPrivate}

		if !slices.Contains(allowed, *req.AccessLevel) {
			return NewValidationError(
				"validateListWorkflowsRequest",
				"INVALID_ACCESS_LEVEL",
				fmt.Sprintf("invalid access level '%s'", *req.AccessLevel),
				ErrInvalidAccessLevel,
			)
		}
	}

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create registers a new workflow. The version starts at zero; every
// accepted batch save bumps it.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.Version = 0

	if workflow.AccessLevel == "" {
		workflow.AccessLevel = models.AccessLevelPrivate
	}

	if workflow.AccessLevel != models.AccessLevelPublic && workflow.AccessLevel != models.AccessLevelPrivate {
		return nil, NewValidationError(
			"Create",
			"INVALID_ACCESS_LEVEL",
			fmt.Sprintf("invalid access level '%s'", workflow.AccessLevel),
			ErrInvalidAccessLevel,
		)
	}

	err := w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	if w.events.enabled() {
		w.events.publish(ctx, workflow.ID, events.WorkflowCreated{
			BaseEvent:   w.events.base(events.WorkflowCreatedEvent, workflow.ID),
			Name:        workflow.Name,
			AccessLevel: workflow.AccessLevel,
			Owner:       workflow.Owner,
		})
	}

	return workflow, nil
}

// Update modifies an existing workflow's metadata. The version and
// timestamps are owned by the store and survive the update.
func (w *Workflow) Update(ctx context.Context, workflowID string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrWorkflowNotFound
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()
	workflow.Version = existing.Version

	if workflow.AccessLevel == "" {
		workflow.AccessLevel = existing.AccessLevel
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete soft-deletes a workflow. The janitor purges it, and everything
// it owns, after the retention window.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrWorkflowNotFound
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	if w.events.enabled() {
		w.events.publish(ctx, workflowID, events.WorkflowDeleted{
			BaseEvent: w.events.base(events.WorkflowDeletedEvent, workflowID),
		})
	}

	return nil
}

// Export returns the full workflow document: the workflow plus every
// node and edge across all layers.
func (w *Workflow) Export(ctx context.Context, workflowID string) (*models.WorkflowDocument, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	nodes, err := w.persistence.GraphRepository().AllNodes(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to export nodes: %w", err)
	}

	edges, err := w.persistence.GraphRepository().AllEdges(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to export edges: %w", err)
	}

	return &models.WorkflowDocument{Workflow: workflow, Nodes: nodes, Edges: edges}, nil
}
