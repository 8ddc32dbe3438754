package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
	"github.com/flowboard/flowboard/pkg/persistence/file"
	"github.com/flowboard/flowboard/pkg/services"
	"github.com/flowboard/flowboard/pkg/sessionlock"
	"github.com/flowboard/flowboard/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.Default()

	workflowService := services.NewWorkflow(logger, store, nil)

	graphService, err := services.NewGraph(logger, store, nil)
	require.NoError(t, err)

	templateService := services.NewTemplate(logger, store, nil)

	handlers := web.NewAPIHandlers(
		workflowService,
		graphService,
		templateService,
		validator.New(validator.WithRequiredStructEnabled()),
		sessionlock.NewMemoryLocker(),
	)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/export", handlers.ExportWorkflow)

	w.Get("/:id/nodes", handlers.GetNodes)
	w.Post("/:id/nodes", handlers.CreateNode)
	w.Patch("/:id/nodes/:nodeId", handlers.UpdateNode)
	w.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)

	w.Get("/:id/edges", handlers.GetEdges)
	w.Post("/:id/edges", handlers.CreateEdge)
	w.Delete("/:id/edges/:edgeId", handlers.DeleteEdge)

	w.Get("/:id/lease", handlers.GetLease)
	w.Post("/:id/lease", handlers.AcquireLease)
	w.Put("/:id/lease", handlers.RenewLease)
	w.Delete("/:id/lease", handlers.ReleaseLease)

	w.Post("/:id/batch", handlers.CreateBatch)
	w.Post("/:id/batch-save", handlers.BatchSave)
	w.Post("/:id/expand", handlers.ExpandTemplate)

	tpl := app.Group("/action-templates")
	tpl.Get("/", handlers.GetTemplates)
	tpl.Get("/:id", handlers.GetTemplate)

	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func createTestWorkflow(t *testing.T, app *fiber.App) *models.Workflow {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", web.CreateWorkflowRequest{
		Name:        "Quarterly Launch",
		Description: "Launch planning board",
		Owner:       "user-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	return &workflow
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful creation defaults to private",
			requestBody: web.CreateWorkflowRequest{
				Name:  "Test Workflow",
				Owner: "test-user",
			},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var workflow models.Workflow
				require.NoError(t, json.Unmarshal(body, &workflow))
				assert.Equal(t, "Test Workflow", workflow.Name)
				assert.Equal(t, models.AccessLevelPrivate, workflow.AccessLevel)
				assert.NotEmpty(t, workflow.ID)
				assert.Zero(t, workflow.Version)
			},
		},
		{
			name: "name too short",
			requestBody: web.CreateWorkflowRequest{
				Name: "ab",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid access level",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Valid Name",
				AccessLevel: models.AccessLevel("secret"),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, body := doJSON(t, app, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow_Partial(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	newName := "Renamed Launch"

	resp, body := doJSON(t, app, http.MethodPatch, "/workflows/"+workflow.ID, web.UpdateWorkflowRequest{
		Name: &newName,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "Renamed Launch", updated.Name)
	assert.Equal(t, "Launch planning board", updated.Description)
	assert.Equal(t, workflow.Version, updated.Version)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	resp, _ := doJSON(t, app, http.MethodDelete, "/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_NodeLifecycle(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/nodes", web.CreateNodeRequest{
		NodeType: models.NodeTypeIssue,
		Layer:    models.LayerStrategic,
		Position: models.Position{X: 100, Y: 200},
		Data:     map[string]any{"label": "Churn spike", "severity": "high"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var node models.Node
	require.NoError(t, json.Unmarshal(body, &node))
	assert.Equal(t, models.NodeTypeIssue, node.Type)
	assert.Equal(t, "Churn spike", node.Label())

	resp, body = doJSON(t, app, http.MethodGet, "/workflows/"+workflow.ID+"/nodes?layer=STRATEGIC", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Nodes []*models.Node `json:"nodes"`
	}

	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing.Nodes, 1)
	assert.Equal(t, node.ID, listing.Nodes[0].ID)

	resp, _ = doJSON(t, app, http.MethodDelete, "/workflows/"+workflow.ID+"/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIHandlers_CreateNode_RejectsBadPayload(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/nodes", web.CreateNodeRequest{
		NodeType: models.NodeTypeStickyNote,
		Layer:    models.LayerStrategic,
		Data:     map[string]any{"label": "wrong field for a sticky note"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_BatchSave_VersionFlow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	snapshot := web.BatchSaveRequest{
		Layer:   models.LayerStrategic,
		Version: 0,
		Nodes: []*models.Node{
			{
				ID:         "node-a",
				WorkflowID: workflow.ID,
				Type:       models.NodeTypeIssue,
				Layer:      models.LayerStrategic,
				Data:       &models.IssueData{Title: "Latency regression"},
			},
			{
				ID:         "node-b",
				WorkflowID: workflow.ID,
				Type:       models.NodeTypeAction,
				Layer:      models.LayerStrategic,
				Data:       &models.ActionData{Title: "Profile hot paths"},
			},
		},
		Edges: []*models.Edge{
			{
				ID:         "edge-1",
				WorkflowID: workflow.ID,
				Source:     "node-a",
				Target:     "node-b",
				Layer:      models.LayerStrategic,
			},
		},
	}

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/batch-save", snapshot)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved web.BatchSaveResponse
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, int64(1), saved.Version)

	// Replaying the same snapshot at the old version must conflict.
	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/batch-save", snapshot)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ExpandTemplate(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	err := store.TemplateRepository().SaveTemplate(context.Background(), &models.ActionTemplate{
		ID:         "tpl-review",
		ActionName: "Design review",
		Resources: []models.ResourceDescriptor{
			{Name: "Figma board"},
			{Name: "Reviewer pool"},
		},
		Deliverables: []string{"Signed-off design"},
	})
	require.NoError(t, err)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+workflow.ID+"/expand", web.ExpandTemplateRequest{
		TemplateID: "tpl-review",
		Layer:      models.LayerStrategic,
		Position:   models.Position{X: 400, Y: 300},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result services.ExpandResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Len(t, result.Nodes, 4)
	assert.Len(t, result.Edges, 3)
	assert.Equal(t, models.NodeTypeAction, result.Nodes[0].Type)

	resp, body = doJSON(t, app, http.MethodGet, "/workflows/"+workflow.ID+"/nodes?layer=STRATEGIC", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Nodes []*models.Node `json:"nodes"`
	}

	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Len(t, listing.Nodes, 4)
}

func TestAPIHandlers_GetTemplates(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	err := store.TemplateRepository().SaveTemplate(context.Background(), &models.ActionTemplate{
		ID:         "tpl-1",
		ActionName: "Incident retro",
	})
	require.NoError(t, err)

	resp, body := doJSON(t, app, http.MethodGet, "/action-templates/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Templates []*models.ActionTemplate `json:"templates"`
	}

	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing.Templates, 1)
	assert.Equal(t, "Incident retro", listing.Templates[0].ActionName)

	resp, _ = doJSON(t, app, http.MethodGet, "/action-templates/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_LeaseFlow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createTestWorkflow(t, app)

	path := "/workflows/" + workflow.ID + "/lease"

	resp, body := doJSON(t, app, http.MethodPost, path, web.LeaseRequest{SessionID: "session-a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lease web.LeaseResponse
	require.NoError(t, json.Unmarshal(body, &lease))
	assert.Equal(t, "session-a", lease.SessionID)
	assert.False(t, lease.ExpiresAt.IsZero())

	// A second session cannot take a held lease.
	resp, _ = doJSON(t, app, http.MethodPost, path, web.LeaseRequest{SessionID: "session-b"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var holder struct {
		Holder string `json:"holder"`
	}

	require.NoError(t, json.Unmarshal(body, &holder))
	assert.Equal(t, "session-a", holder.Holder)

	resp, _ = doJSON(t, app, http.MethodDelete, path, web.LeaseRequest{SessionID: "session-a"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, path, web.LeaseRequest{SessionID: "session-b"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}

	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}
