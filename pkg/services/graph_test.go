package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
	"github.com/flowboard/flowboard/pkg/persistence/file"
)

func newGraphFixture(t *testing.T) (*Graph, *models.Workflow, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	t.Cleanup(func() { _ = store.Close(t.Context()) })

	workflows := NewWorkflow(slog.Default(), store, nil)

	workflow, err := workflows.Create(t.Context(), &models.Workflow{Name: "Graph fixture"})
	require.NoError(t, err)

	graphs, err := NewGraph(slog.Default(), store, nil)
	require.NoError(t, err)

	return graphs, workflow, store
}

func TestGraph_CreateNodeValidatesPayload(t *testing.T) {
	graphs, workflow, _ := newGraphFixture(t)

	node, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:     models.NodeTypeIssue,
		Layer:    models.LayerStrategic,
		Position: models.Position{X: 10, Y: 20},
		Payload:  map[string]any{"label": "Vendor delay", "severity": "high"},
	})
	require.NoError(t, err)

	data, ok := node.Data.(*models.IssueData)
	require.True(t, ok)
	assert.Equal(t, "Vendor delay", data.Title)

	_, err = graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:    models.NodeTypeIssue,
		Layer:   models.LayerStrategic,
		Payload: map[string]any{"severity": "high"},
	})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:    models.NodeType("MILESTONE"),
		Layer:   models.LayerStrategic,
		Payload: map[string]any{"label": "x"},
	})
	require.ErrorIs(t, err, ErrInvalidNodeType)
}

func TestGraph_CreateNodeEnforcesParentInvariant(t *testing.T) {
	graphs, workflow, _ := newGraphFixture(t)

	parent := "node-p"

	_, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:         models.NodeTypeTask,
		Layer:        models.LayerStrategic,
		ParentNodeID: &parent,
		Payload:      map[string]any{"label": "wrong"},
	})
	require.ErrorIs(t, err, ErrParentMismatch)

	_, err = graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:    models.NodeTypeTask,
		Layer:   models.LayerTactical,
		Payload: map[string]any{"label": "also wrong"},
	})
	require.ErrorIs(t, err, ErrParentMismatch)
}

func TestGraph_UpdateNodeMergesPatch(t *testing.T) {
	graphs, workflow, _ := newGraphFixture(t)

	node, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:    models.NodeTypeDeliverable,
		Layer:   models.LayerStrategic,
		Payload: map[string]any{"label": "Report", "status": "draft"},
	})
	require.NoError(t, err)

	updated, err := graphs.UpdateNode(t.Context(), workflow.ID, node.ID,
		&models.Position{X: 5, Y: 6}, map[string]any{"status": "done"})
	require.NoError(t, err)

	data := updated.Data.(*models.DeliverableData)
	assert.Equal(t, "Report", data.Title, "unpatched fields survive")
	assert.Equal(t, "done", data.Status)
	assert.Equal(t, models.Position{X: 5, Y: 6}, updated.Position)

	_, err = graphs.UpdateNode(t.Context(), workflow.ID, "node-missing", nil, map[string]any{"status": "x"})
	require.ErrorIs(t, err, persistence.ErrNodeNotFound)
}

func TestGraph_DeleteNodeCascadesDescendants(t *testing.T) {
	graphs, workflow, store := newGraphFixture(t)

	root, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:    models.NodeTypeAction,
		Layer:   models.LayerStrategic,
		Payload: map[string]any{"label": "Root action"},
	})
	require.NoError(t, err)

	child, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type:         models.NodeTypeTask,
		Layer:        models.LayerTactical,
		ParentNodeID: &root.ID,
		Payload:      map[string]any{"label": "Nested task"},
	})
	require.NoError(t, err)
	require.NotNil(t, child)

	require.NoError(t, graphs.DeleteNode(t.Context(), workflow.ID, root.ID))

	remaining, err := store.GraphRepository().AllNodes(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Deleting again is a no-op.
	require.NoError(t, graphs.DeleteNode(t.Context(), workflow.ID, root.ID))
}

func TestGraph_CreateEdgeValidatesEndpoints(t *testing.T) {
	graphs, workflow, _ := newGraphFixture(t)

	issue, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type: models.NodeTypeIssue, Layer: models.LayerStrategic,
		Payload: map[string]any{"label": "Issue"},
	})
	require.NoError(t, err)

	action, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type: models.NodeTypeAction, Layer: models.LayerStrategic,
		Payload: map[string]any{"label": "Action"},
	})
	require.NoError(t, err)

	edge, err := graphs.CreateEdge(t.Context(), workflow.ID, issue.ID, action.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LayerStrategic, edge.Layer)

	_, err = graphs.CreateEdge(t.Context(), workflow.ID, issue.ID, "node-missing")
	require.ErrorIs(t, err, ErrEndpointMissing)

	task, err := graphs.CreateNode(t.Context(), workflow.ID, CreateNodeRequest{
		Type: models.NodeTypeTask, Layer: models.LayerTactical, ParentNodeID: &action.ID,
		Payload: map[string]any{"label": "Task"},
	})
	require.NoError(t, err)

	_, err = graphs.CreateEdge(t.Context(), workflow.ID, issue.ID, task.ID)
	require.ErrorIs(t, err, ErrCrossLayerEdge)
}

func TestGraph_SaveScopeReplacesViewAndBumpsVersion(t *testing.T) {
	graphs, workflow, store := newGraphFixture(t)

	scope := persistence.GraphScope{WorkflowID: workflow.ID, Layer: models.LayerStrategic}

	nodes := []*models.Node{
		{ID: "node-a", WorkflowID: workflow.ID, Type: models.NodeTypeIssue, Layer: models.LayerStrategic, Data: &models.IssueData{Title: "A"}},
		{ID: "node-b", WorkflowID: workflow.ID, Type: models.NodeTypeAction, Layer: models.LayerStrategic, Data: &models.ActionData{Title: "B"}},
	}
	edges := []*models.Edge{
		{ID: "edge-1", WorkflowID: workflow.ID, Source: "node-a", Target: "node-b", Layer: models.LayerStrategic},
	}

	version, err := graphs.SaveScope(t.Context(), scope, 0, nodes, edges)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// A stale version is rejected.
	_, err = graphs.SaveScope(t.Context(), scope, 0, nodes, edges)
	require.ErrorIs(t, err, persistence.ErrVersionConflict)
	assert.True(t, IsConflictError(err))

	// Dropping node-b from the snapshot removes it and its edge.
	version, err = graphs.SaveScope(t.Context(), scope, version, nodes[:1], nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	remaining, err := store.GraphRepository().NodesByScope(t.Context(), scope)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "node-a", remaining[0].ID)
}

func TestGraph_SaveScopeRejectsForeignElements(t *testing.T) {
	graphs, workflow, _ := newGraphFixture(t)

	scope := persistence.GraphScope{WorkflowID: workflow.ID, Layer: models.LayerStrategic}

	_, err := graphs.SaveScope(t.Context(), scope, 0, []*models.Node{
		{ID: "node-x", WorkflowID: "wf-other", Type: models.NodeTypeIssue, Layer: models.LayerStrategic, Data: &models.IssueData{Title: "X"}},
	}, nil)
	require.ErrorIs(t, err, ErrWorkflowMismatch)

	parent := "node-p"

	_, err = graphs.SaveScope(t.Context(), scope, 0, []*models.Node{
		{ID: "node-y", WorkflowID: workflow.ID, Type: models.NodeTypeIssue, Layer: models.LayerTactical, ParentNodeID: &parent, Data: &models.IssueData{Title: "Y"}},
	}, nil)
	require.ErrorIs(t, err, ErrInvalidLayer)

	_, err = graphs.SaveScope(t.Context(), scope, 0, nil, []*models.Edge{
		{ID: "edge-z", WorkflowID: workflow.ID, Source: "ghost", Target: "ghost2", Layer: models.LayerStrategic},
	})
	require.ErrorIs(t, err, ErrEndpointMissing)
}
