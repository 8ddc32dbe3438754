// Package catalog is the client-side workflow browser: listing,
// creating, deleting and exporting workflow documents through the API.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// Remote is the workflow-document surface of the API.
type Remote interface {
	ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error)
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ExportWorkflow(ctx context.Context, id string) (*models.WorkflowDocument, error)
}

// Catalog lists and manages workflow documents.
type Catalog struct {
	logger   *slog.Logger
	remote   Remote
	validate *validator.Validate
}

// NewCatalog creates a catalog over the given API surface.
func NewCatalog(logger *slog.Logger, remote Remote) *Catalog {
	return &Catalog{
		logger:   logger.With("module", "catalog"),
		remote:   remote,
		validate: validator.New(),
	}
}

// List returns a page of workflows.
func (c *Catalog) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	return c.remote.ListWorkflows(ctx, opts)
}

// Create registers a new empty workflow. The access level defaults to
// private when unset.
func (c *Catalog) Create(ctx context.Context, name, description string, access models.AccessLevel, owner string) (*models.Workflow, error) {
	if access == "" {
		access = models.AccessLevelPrivate
	}

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		AccessLevel: access,
		Owner:       owner,
	}

	if err := c.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	created, err := c.remote.CreateWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Workflow created", "workflow_id", created.ID, "name", created.Name)

	return created, nil
}

// Get fetches one workflow document.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return c.remote.GetWorkflow(ctx, id)
}

// Delete removes a workflow and, transitively, every node and edge it
// owns across all layers.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.remote.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)

	return nil
}

// Export returns the full document: the workflow plus every node and
// edge across all layers.
func (c *Catalog) Export(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	return c.remote.ExportWorkflow(ctx, id)
}
