// Package engine is the client-side session facade. It binds the graph
// store, the navigation state machine, the autosave synchronizer and the
// template expander to one open workflow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowboard/flowboard/pkg/autosave"
	"github.com/flowboard/flowboard/pkg/expansion"
	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/navigation"
)

var (
	// ErrNoWorkflowOpen is returned by operations that need an open
	// workflow session.
	ErrNoWorkflowOpen = errors.New("no workflow is open")

	// ErrIllegalNavigation is returned for drill-downs and jumps the
	// navigation state machine rejects.
	ErrIllegalNavigation = errors.New("navigation transition not allowed")
)

// Remote is everything the engine needs from the workflow API: scope
// reads for the store, batch writes for expansion and autosave, and the
// workflow and template catalogs.
type Remote interface {
	graph.Source
	expansion.Persister
	autosave.Saver

	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	GetTemplate(ctx context.Context, id string) (*models.ActionTemplate, error)
	ListTemplates(ctx context.Context) ([]*models.ActionTemplate, error)
}

// Config carries the engine dependencies. Scheduler and Debounce are
// optional and default to real timers with the standard window.
type Config struct {
	Logger    *slog.Logger
	Remote    Remote
	Scheduler autosave.Scheduler
	Debounce  time.Duration
}

// Engine drives one workflow editing session.
type Engine struct {
	logger *slog.Logger
	remote Remote

	store    *graph.Store
	sync     *autosave.Synchronizer
	expander *expansion.Expander

	workflow *models.Workflow
	nav      models.NavigationState
}

// New creates an engine without an open workflow. Call Open before any
// graph or navigation operation.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		logger:   logger.With("module", "engine"),
		remote:   cfg.Remote,
		expander: expansion.NewExpander(cfg.Remote),
	}

	engine.store = graph.NewStore(cfg.Remote)
	engine.sync = autosave.NewSynchronizer(logger, engine.store, cfg.Remote, cfg.Scheduler, cfg.Debounce)
	engine.store.SetObserver(engine.sync.NoteChange)

	return engine
}

// Open loads a workflow and positions the session at the STRATEGIC root.
// Opening while another workflow is open flushes it first.
func (e *Engine) Open(ctx context.Context, workflowID string) error {
	if e.workflow != nil {
		if err := e.sync.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush previous workflow: %w", err)
		}
	}

	workflow, err := e.remote.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to open workflow %s: %w", workflowID, err)
	}

	root := models.RootNavigationState()

	if err := e.store.Load(ctx, scopeFor(workflow.ID, root)); err != nil {
		return err
	}

	e.workflow = workflow
	e.nav = root
	e.sync.Reset(workflow.Version)

	e.logger.InfoContext(ctx, "Workflow opened", "workflow_id", workflow.ID, "version", workflow.Version)

	return nil
}

// Close flushes any unsaved mutations and ends the session.
func (e *Engine) Close(ctx context.Context) error {
	if e.workflow == nil {
		return nil
	}

	if err := e.sync.Flush(ctx); err != nil {
		return err
	}

	e.workflow = nil
	e.nav = models.RootNavigationState()

	return nil
}

// Workflow returns the open workflow document, or nil.
func (e *Engine) Workflow() *models.Workflow {
	return e.workflow
}

// Navigation returns the current navigation state.
func (e *Engine) Navigation() models.NavigationState {
	return e.nav.Clone()
}

// Nodes returns the nodes of the current layer view.
func (e *Engine) Nodes() []*models.Node {
	return e.store.Nodes()
}

// Edges returns the edges of the current layer view.
func (e *Engine) Edges() []*models.Edge {
	return e.store.Edges()
}

// SaveStatus returns the autosave state and, in the error state, the
// failure that caused it.
func (e *Engine) SaveStatus() (models.SaveStatus, error) {
	return e.sync.Status(), e.sync.LastError()
}

// Version returns the workflow version of the last accepted save.
func (e *Engine) Version() int64 {
	return e.sync.Version()
}

// CreateNode adds a node to the current view at the given position.
func (e *Engine) CreateNode(nodeType models.NodeType, position models.Position, data models.NodeData) (*models.Node, error) {
	if e.workflow == nil {
		return nil, ErrNoWorkflowOpen
	}

	return e.store.CreateNode(nodeType, position, data)
}

// UpdateNode merges a payload patch into a node. The node type is fixed
// at creation and cannot be patched.
func (e *Engine) UpdateNode(id string, patch map[string]any) (*models.Node, error) {
	if e.workflow == nil {
		return nil, ErrNoWorkflowOpen
	}

	return e.store.UpdateNode(id, patch)
}

// MoveNode repositions a node on the canvas.
func (e *Engine) MoveNode(id string, position models.Position) (*models.Node, error) {
	if e.workflow == nil {
		return nil, ErrNoWorkflowOpen
	}

	return e.store.MoveNode(id, position)
}

// DeleteNode removes a node and its incident edges. Deleting an absent
// node is a no-op.
func (e *Engine) DeleteNode(id string) error {
	if e.workflow == nil {
		return ErrNoWorkflowOpen
	}

	e.store.DeleteNode(id)

	return nil
}

// Connect creates an edge between two nodes of the current view.
func (e *Engine) Connect(sourceID, targetID string) (*models.Edge, error) {
	if e.workflow == nil {
		return nil, ErrNoWorkflowOpen
	}

	return e.store.Connect(sourceID, targetID)
}

// SaveNow flushes unsaved mutations immediately, bypassing the debounce
// window.
func (e *Engine) SaveNow(ctx context.Context) error {
	if e.workflow == nil {
		return ErrNoWorkflowOpen
	}

	return e.sync.Flush(ctx)
}

// DrillDown descends into the sub-graph of an ACTION node in the current
// view. The outgoing view is flushed before the new one loads.
func (e *Engine) DrillDown(ctx context.Context, nodeID string) (models.NavigationState, error) {
	if e.workflow == nil {
		return models.NavigationState{}, ErrNoWorkflowOpen
	}

	node, ok := e.store.Node(nodeID)
	if !ok {
		return e.nav.Clone(), graph.ErrNodeNotFound
	}

	next, ok := navigation.DrillDown(e.nav, node)
	if !ok {
		return e.nav.Clone(), ErrIllegalNavigation
	}

	return e.moveTo(ctx, next)
}

// JumpTo returns to an earlier breadcrumb entry, or to the STRATEGIC
// root for index -1. The outgoing view is flushed before the jump.
func (e *Engine) JumpTo(ctx context.Context, index int) (models.NavigationState, error) {
	if e.workflow == nil {
		return models.NavigationState{}, ErrNoWorkflowOpen
	}

	next, ok := navigation.JumpTo(e.nav, index)
	if !ok {
		return e.nav.Clone(), ErrIllegalNavigation
	}

	return e.moveTo(ctx, next)
}

// ExpandTemplate materializes an action template as a connected cluster
// anchored at the given position. The cluster is persisted remotely
// before it becomes visible, and the autosave window is held while the
// expansion runs.
func (e *Engine) ExpandTemplate(ctx context.Context, templateID string, anchor models.Position) ([]*models.Node, []*models.Edge, error) {
	if e.workflow == nil {
		return nil, nil, ErrNoWorkflowOpen
	}

	template, err := e.remote.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch template %s: %w", templateID, err)
	}

	e.sync.Suspend()
	defer e.sync.Resume()

	nodes, edges, err := e.expander.Expand(ctx, e.store, template, anchor)
	if err != nil {
		return nil, nil, err
	}

	e.logger.InfoContext(ctx, "Template expanded",
		"workflow_id", e.workflow.ID, "template_id", templateID, "nodes", len(nodes), "edges", len(edges))

	return nodes, edges, nil
}

// Templates lists the action template catalog.
func (e *Engine) Templates(ctx context.Context) ([]*models.ActionTemplate, error) {
	return e.remote.ListTemplates(ctx)
}

func (e *Engine) moveTo(ctx context.Context, next models.NavigationState) (models.NavigationState, error) {
	if err := e.sync.Flush(ctx); err != nil {
		return e.nav.Clone(), fmt.Errorf("failed to flush before navigation: %w", err)
	}

	if err := e.store.Load(ctx, scopeFor(e.workflow.ID, next)); err != nil {
		return e.nav.Clone(), err
	}

	e.nav = next

	return e.nav.Clone(), nil
}

func scopeFor(workflowID string, state models.NavigationState) graph.Scope {
	scope := graph.Scope{WorkflowID: workflowID, Layer: state.CurrentLayer}

	if state.CurrentParentNodeID != nil {
		parent := *state.CurrentParentNodeID
		scope.ParentNodeID = &parent
	}

	return scope
}
