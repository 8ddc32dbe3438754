package file

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// WorkflowRepository handles workflow document file operations.
type WorkflowRepository struct {
	persistence *Persistence
}

// ListWorkflows returns paginated and filtered workflows using in-memory
// filtering over the stored documents. Soft-deleted workflows are
// excluded.
func (wr *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	wr.persistence.mu.RLock()
	defer wr.persistence.mu.RUnlock()

	ids, err := wr.persistence.workflowIDs()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		document, err := wr.persistence.readDocument(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		if document == nil || document.Workflow.DeletedAt != nil {
			continue
		}

		workflow := document.Workflow

		if opts.OwnerID != "" && workflow.Owner != opts.OwnerID {
			continue
		}

		if opts.AccessLevel != nil && workflow.AccessLevel != *opts.AccessLevel {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	startIdx := opts.Offset
	if startIdx >= len(filtered) {
		return &persistence.WorkflowListResult{
			Workflows:   make([]*models.Workflow, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := opts.Offset + opts.Limit
	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &persistence.WorkflowListResult{
		Workflows:   filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.Slice(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "name":
			less = workflows[i].Name < workflows[j].Name
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

// GetByID returns a workflow by ID, or ErrWorkflowNotFound when missing
// or soft-deleted.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.persistence.mu.RLock()
	defer wr.persistence.mu.RUnlock()

	document, err := wr.persistence.readDocument(id)
	if err != nil {
		return nil, err
	}

	if document == nil || document.Workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return document.Workflow, nil
}

// Save creates or updates a workflow document, preserving any existing
// nodes and edges.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.persistence.mu.Lock()
	defer wr.persistence.mu.Unlock()

	document, err := wr.persistence.readDocument(workflow.ID)
	if err != nil {
		return err
	}

	if document == nil {
		document = &models.WorkflowDocument{
			Nodes: make([]*models.Node, 0),
			Edges: make([]*models.Edge, 0),
		}
	}

	document.Workflow = workflow

	return wr.persistence.writeDocument(document)
}

// Delete soft-deletes a workflow. The document and its graph survive
// until the retention janitor purges them.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.persistence.mu.Lock()
	defer wr.persistence.mu.Unlock()

	document, err := wr.persistence.readDocument(id)
	if err != nil {
		return err
	}

	if document == nil || document.Workflow.DeletedAt != nil {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	document.Workflow.DeletedAt = &now

	return wr.persistence.writeDocument(document)
}

// PurgeDeleted removes workflow documents soft-deleted before the cutoff,
// cascading their nodes and edges by removing the whole file.
func (wr *WorkflowRepository) PurgeDeleted(_ context.Context, olderThan time.Time) (int, error) {
	wr.persistence.mu.Lock()
	defer wr.persistence.mu.Unlock()

	ids, err := wr.persistence.workflowIDs()
	if err != nil {
		return 0, err
	}

	purged := 0

	for _, id := range ids {
		document, err := wr.persistence.readDocument(id)
		if err != nil {
			return purged, err
		}

		if document == nil || document.Workflow.DeletedAt == nil {
			continue
		}

		if document.Workflow.DeletedAt.After(olderThan) {
			continue
		}

		if err := os.Remove(wr.persistence.workflowPath(id)); err != nil {
			return purged, fmt.Errorf("failed to purge workflow %s: %w", id, err)
		}

		purged++
	}

	return purged, nil
}
