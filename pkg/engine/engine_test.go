package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/flowboard/pkg/autosave"
	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// fakeRemote keeps the whole workflow graph in memory and answers scope
// queries the way the API would.
type fakeRemote struct {
	workflow  *models.Workflow
	templates map[string]*models.ActionTemplate
	nodes     []*models.Node
	edges     []*models.Edge

	saves    int
	batches  int
	batchErr error
	saveErr  error
}

func (f *fakeRemote) FetchNodes(_ context.Context, _ string, layer models.Layer, parent *string) ([]*models.Node, error) {
	result := make([]*models.Node, 0)

	for _, node := range f.nodes {
		if node.Layer != layer {
			continue
		}

		if parent == nil && node.ParentNodeID != nil {
			continue
		}

		if parent != nil && (node.ParentNodeID == nil || *node.ParentNodeID != *parent) {
			continue
		}

		result = append(result, node)
	}

	return result, nil
}

func (f *fakeRemote) FetchEdges(_ context.Context, _ string, layer models.Layer) ([]*models.Edge, error) {
	result := make([]*models.Edge, 0)

	for _, edge := range f.edges {
		if edge.Layer == layer {
			result = append(result, edge)
		}
	}

	return result, nil
}

func (f *fakeRemote) CreateBatch(_ context.Context, _ string, nodes []*models.Node, edges []*models.Edge) error {
	f.batches++

	if f.batchErr != nil {
		return f.batchErr
	}

	f.nodes = append(f.nodes, nodes...)
	f.edges = append(f.edges, edges...)

	return nil
}

func (f *fakeRemote) SaveScope(_ context.Context, _ graph.Scope, version int64, _ []*models.Node, _ []*models.Edge) (int64, error) {
	f.saves++

	if f.saveErr != nil {
		return 0, f.saveErr
	}

	if version != f.workflow.Version {
		return 0, persistence.ErrVersionConflict
	}

	f.workflow.Version++

	return f.workflow.Version, nil
}

func (f *fakeRemote) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	if f.workflow == nil || f.workflow.ID != id {
		return nil, persistence.ErrWorkflowNotFound
	}

	clone := *f.workflow

	return &clone, nil
}

func (f *fakeRemote) GetTemplate(_ context.Context, id string) (*models.ActionTemplate, error) {
	template, ok := f.templates[id]
	if !ok {
		return nil, persistence.ErrTemplateNotFound
	}

	return template, nil
}

func (f *fakeRemote) ListTemplates(_ context.Context) ([]*models.ActionTemplate, error) {
	result := make([]*models.ActionTemplate, 0, len(f.templates))

	for _, template := range f.templates {
		result = append(result, template)
	}

	return result, nil
}

func seededRemote() *fakeRemote {
	parent := "action-1"

	return &fakeRemote{
		workflow: &models.Workflow{ID: "wf-1", Name: "Quarterly plan", AccessLevel: models.AccessLevelPublic, Version: 3},
		templates: map[string]*models.ActionTemplate{
			"tpl-1": {
				ID:           "tpl-1",
				ActionName:   "Hire contractor",
				Resources:    []models.ResourceDescriptor{{Name: "Budget"}},
				Deliverables: []string{"Contract"},
			},
		},
		nodes: []*models.Node{
			{ID: "action-1", WorkflowID: "wf-1", Type: models.NodeTypeAction, Layer: models.LayerStrategic, Data: &models.ActionData{Title: "Expand sales"}},
			{ID: "issue-1", WorkflowID: "wf-1", Type: models.NodeTypeIssue, Layer: models.LayerStrategic, Data: &models.IssueData{Title: "Pipeline dry"}},
			{ID: "task-1", WorkflowID: "wf-1", Type: models.NodeTypeTask, Layer: models.LayerTactical, ParentNodeID: &parent, Data: &models.TaskData{Title: "Cold outreach"}},
		},
		edges: []*models.Edge{
			{ID: "edge-1", WorkflowID: "wf-1", Source: "issue-1", Target: "action-1", Layer: models.LayerStrategic},
		},
	}
}

func openEngine(t *testing.T, remote *fakeRemote, scheduler autosave.Scheduler) *Engine {
	t.Helper()

	engine := New(Config{Remote: remote, Scheduler: scheduler, Debounce: time.Second})
	require.NoError(t, engine.Open(t.Context(), "wf-1"))

	return engine
}

func TestEngine_OpenLoadsStrategicRoot(t *testing.T) {
	engine := openEngine(t, seededRemote(), &autosave.ManualScheduler{})

	assert.Equal(t, "wf-1", engine.Workflow().ID)
	assert.Equal(t, models.LayerStrategic, engine.Navigation().CurrentLayer)
	assert.Equal(t, 0, engine.Navigation().Depth())
	assert.Len(t, engine.Nodes(), 2)
	assert.Len(t, engine.Edges(), 1)
	assert.Equal(t, int64(3), engine.Version())

	status, err := engine.SaveStatus()
	assert.Equal(t, models.SaveStatusIdle, status)
	assert.NoError(t, err)
}

func TestEngine_OperationsRequireOpenWorkflow(t *testing.T) {
	engine := New(Config{Remote: seededRemote(), Scheduler: &autosave.ManualScheduler{}})

	_, err := engine.CreateNode(models.NodeTypeIssue, models.Position{}, &models.IssueData{Title: "x"})
	require.ErrorIs(t, err, ErrNoWorkflowOpen)

	_, err = engine.DrillDown(t.Context(), "action-1")
	require.ErrorIs(t, err, ErrNoWorkflowOpen)

	require.ErrorIs(t, engine.SaveNow(t.Context()), ErrNoWorkflowOpen)
}

func TestEngine_EditThenScheduledSave(t *testing.T) {
	remote := seededRemote()
	scheduler := &autosave.ManualScheduler{}
	engine := openEngine(t, remote, scheduler)

	_, err := engine.CreateNode(models.NodeTypeBlocker, models.Position{X: 30}, &models.BlockerData{Title: "Legal review"})
	require.NoError(t, err)

	assert.Equal(t, 0, remote.saves)
	require.True(t, scheduler.Fire())

	assert.Equal(t, 1, remote.saves)
	assert.Equal(t, int64(4), engine.Version())

	status, _ := engine.SaveStatus()
	assert.Equal(t, models.SaveStatusSaved, status)
}

func TestEngine_DrillDownFlushesAndLoadsChildScope(t *testing.T) {
	remote := seededRemote()
	engine := openEngine(t, remote, &autosave.ManualScheduler{})

	_, err := engine.CreateNode(models.NodeTypeStickyNote, models.Position{}, &models.StickyNoteData{Text: "remember"})
	require.NoError(t, err)

	state, err := engine.DrillDown(t.Context(), "action-1")
	require.NoError(t, err)

	assert.Equal(t, 1, remote.saves, "pending edits flush before the view switches")
	assert.Equal(t, models.LayerTactical, state.CurrentLayer)
	require.Len(t, state.Breadcrumb, 1)
	assert.Equal(t, "action-1", state.Breadcrumb[0].NodeID)

	nodes := engine.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "task-1", nodes[0].ID)
}

func TestEngine_DrillDownRejectsNonAction(t *testing.T) {
	engine := openEngine(t, seededRemote(), &autosave.ManualScheduler{})

	_, err := engine.DrillDown(t.Context(), "issue-1")
	require.ErrorIs(t, err, ErrIllegalNavigation)
	assert.Equal(t, models.LayerStrategic, engine.Navigation().CurrentLayer)

	_, err = engine.DrillDown(t.Context(), "node-missing")
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestEngine_JumpBackToRoot(t *testing.T) {
	engine := openEngine(t, seededRemote(), &autosave.ManualScheduler{})

	_, err := engine.DrillDown(t.Context(), "action-1")
	require.NoError(t, err)

	state, err := engine.JumpTo(t.Context(), -1)
	require.NoError(t, err)
	assert.Equal(t, models.LayerStrategic, state.CurrentLayer)
	assert.Empty(t, state.Breadcrumb)
	assert.Len(t, engine.Nodes(), 2)

	_, err = engine.JumpTo(t.Context(), 3)
	require.ErrorIs(t, err, ErrIllegalNavigation)
}

func TestEngine_ExpandTemplate(t *testing.T) {
	remote := seededRemote()
	engine := openEngine(t, remote, &autosave.ManualScheduler{})

	nodes, edges, err := engine.ExpandTemplate(t.Context(), "tpl-1", models.Position{X: 100, Y: 100})
	require.NoError(t, err)

	assert.Len(t, nodes, 3)
	assert.Len(t, edges, 2)
	assert.Equal(t, 1, remote.batches)
	assert.Len(t, engine.Nodes(), 5)
}

func TestEngine_ExpandTemplateRemoteFailure(t *testing.T) {
	remote := seededRemote()
	remote.batchErr = errors.New("boom")
	engine := openEngine(t, remote, &autosave.ManualScheduler{})

	_, _, err := engine.ExpandTemplate(t.Context(), "tpl-1", models.Position{})
	require.Error(t, err)
	assert.Len(t, engine.Nodes(), 2, "nothing appears locally on failure")
}

func TestEngine_VersionConflictOnStaleSave(t *testing.T) {
	remote := seededRemote()
	engine := openEngine(t, remote, &autosave.ManualScheduler{})

	// Another session accepted a save in the meantime.
	remote.workflow.Version = 9

	_, err := engine.CreateNode(models.NodeTypeIssue, models.Position{}, &models.IssueData{Title: "Stale"})
	require.NoError(t, err)

	require.ErrorIs(t, engine.SaveNow(t.Context()), persistence.ErrVersionConflict)

	status, lastErr := engine.SaveStatus()
	assert.Equal(t, models.SaveStatusError, status)
	require.ErrorIs(t, lastErr, persistence.ErrVersionConflict)
}

func TestEngine_EditingScenario(t *testing.T) {
	remote := seededRemote()
	scheduler := &autosave.ManualScheduler{}
	engine := openEngine(t, remote, scheduler)

	action, err := engine.CreateNode(models.NodeTypeAction, models.Position{X: 10, Y: 20},
		&models.ActionData{Title: "Onboard Client"})
	require.NoError(t, err)

	state, err := engine.DrillDown(t.Context(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LayerTactical, state.CurrentLayer)
	require.NotNil(t, state.CurrentParentNodeID)
	assert.Equal(t, action.ID, *state.CurrentParentNodeID)

	resource, err := engine.CreateNode(models.NodeTypeResource, models.Position{X: 5, Y: 5},
		&models.ResourceData{Title: "CRM seat"})
	require.NoError(t, err)
	assert.Equal(t, models.LayerTactical, resource.Layer)

	// The strategic action is outside the loaded tactical scope, so
	// connecting across layers never gets as far as an edge.
	_, err = engine.Connect(resource.ID, action.ID)
	require.Error(t, err)
	assert.True(t, graph.IsValidation(err) || graph.IsNotFound(err))
	assert.Empty(t, engine.Edges())
}
