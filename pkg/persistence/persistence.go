// Package persistence provides the data storage abstraction for workflow
// documents, graph scopes, and the action template catalog.
package persistence

import (
	"context"
	"time"

	"github.com/flowboard/flowboard/pkg/models"
)

// Persistence is the storage backend behind the Flowboard API.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	GraphRepository() GraphRepository
	TemplateRepository() TemplateRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters and paginates workflow listings.
type ListWorkflowsOptions struct {
	Limit       int
	Offset      int
	OwnerID     string
	AccessLevel *models.AccessLevel
	SortBy      string // created_at, updated_at, name
	SortOrder   string // asc, desc
}

// WorkflowListResult is a page of workflows plus paging metadata.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

// WorkflowRepository stores workflow documents. Delete is a soft delete;
// purging happens out of band (janitor) and cascades owned nodes/edges.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	PurgeDeleted(ctx context.Context, olderThan time.Time) (int, error)
}

// GraphScope identifies the node/edge set of one layer view.
type GraphScope struct {
	WorkflowID   string
	Layer        models.Layer
	ParentNodeID *string
}

// GraphRepository stores the nodes and edges owned by workflows.
//
// DeleteNode cascades: every edge incident to the node and every
// descendant node reachable through parent_node_id chains is removed,
// so no orphaned nested layer survives. ReplaceScope is the batched
// autosave write: it atomically swaps one scope's node/edge set,
// rejecting the write when the supplied workflow version is stale.
type GraphRepository interface {
	NodesByScope(ctx context.Context, scope GraphScope) ([]*models.Node, error)
	EdgesByLayer(ctx context.Context, workflowID string, layer models.Layer) ([]*models.Edge, error)
	AllNodes(ctx context.Context, workflowID string) ([]*models.Node, error)
	AllEdges(ctx context.Context, workflowID string) ([]*models.Edge, error)

	SaveNode(ctx context.Context, node *models.Node) error
	DeleteNode(ctx context.Context, workflowID, nodeID string) error
	SaveEdge(ctx context.Context, edge *models.Edge) error
	DeleteEdge(ctx context.Context, workflowID, edgeID string) error

	CreateBatch(ctx context.Context, workflowID string, nodes []*models.Node, edges []*models.Edge) error
	ReplaceScope(ctx context.Context, scope GraphScope, version int64, nodes []*models.Node, edges []*models.Edge) (int64, error)
}

// TemplateRepository stores the read-only action template catalog. Save
// exists for seeding and administration, never for the engine.
type TemplateRepository interface {
	ListTemplates(ctx context.Context) ([]*models.ActionTemplate, error)
	GetTemplate(ctx context.Context, id string) (*models.ActionTemplate, error)
	SaveTemplate(ctx context.Context, template *models.ActionTemplate) error
}
