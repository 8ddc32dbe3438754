package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/flowboard/pkg/client"
	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

func problemResponse(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"title":  http.StatusText(status),
		"detail": detail,
	})
}

func TestClient_FetchNodes_QueryParameters(t *testing.T) {
	t.Parallel()

	var gotPath, gotLayer, gotParent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLayer = r.URL.Query().Get("layer")
		gotParent = r.URL.Query().Get("parent_node_id")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"nodes": []*models.Node{
				{
					ID:         "node-1",
					WorkflowID: "wf-1",
					Type:       models.NodeTypeTask,
					Layer:      models.LayerTactical,
					Data:       &models.TaskData{Title: "Write migration"},
				},
			},
		})
	}))
	defer server.Close()

	c := client.New(server.URL, nil)

	parent := "action-1"

	nodes, err := c.FetchNodes(context.Background(), "wf-1", models.LayerTactical, &parent)
	require.NoError(t, err)

	assert.Equal(t, "/workflows/wf-1/nodes", gotPath)
	assert.Equal(t, "TACTICAL", gotLayer)
	assert.Equal(t, "action-1", gotParent)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Write migration", nodes[0].Label())
}

func TestClient_SaveScope_VersionConflict(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problemResponse(w, http.StatusConflict, "workflow version is stale")
	}))
	defer server.Close()

	c := client.New(server.URL, nil)

	_, err := c.SaveScope(context.Background(), graph.Scope{
		WorkflowID: "wf-1",
		Layer:      models.LayerStrategic,
	}, 3, nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)
}

func TestClient_SaveScope_SendsSnapshot(t *testing.T) {
	t.Parallel()

	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"version": 4})
	}))
	defer server.Close()

	c := client.New(server.URL, nil)

	version, err := c.SaveScope(context.Background(), graph.Scope{
		WorkflowID: "wf-1",
		Layer:      models.LayerStrategic,
	}, 3, []*models.Node{
		{
			ID:         "node-1",
			WorkflowID: "wf-1",
			Type:       models.NodeTypeIssue,
			Layer:      models.LayerStrategic,
			Data:       &models.IssueData{Title: "Flaky deploys"},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(4), version)
	assert.Equal(t, "STRATEGIC", body["layer"])
	assert.Equal(t, float64(3), body["version"])
	assert.Len(t, body["nodes"], 1)
	assert.Empty(t, body["edges"])
}

func TestClient_NotFoundMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		detail   string
		call     func(c *client.Client) error
		expected error
	}{
		{
			name:   "workflow not found",
			detail: "Workflow not found",
			call: func(c *client.Client) error {
				_, err := c.GetWorkflow(context.Background(), "missing")

				return err
			},
			expected: persistence.ErrWorkflowNotFound,
		},
		{
			name:   "template not found",
			detail: "Template not found",
			call: func(c *client.Client) error {
				_, err := c.GetTemplate(context.Background(), "missing")

				return err
			},
			expected: persistence.ErrTemplateNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				problemResponse(w, http.StatusNotFound, tt.detail)
			}))
			defer server.Close()

			err := tt.call(client.New(server.URL, nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestClient_CreateWorkflow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Board", body["name"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&models.Workflow{
			ID:          "wf-1",
			Name:        "Board",
			AccessLevel: models.AccessLevelPrivate,
		})
	}))
	defer server.Close()

	c := client.New(server.URL, nil)

	created, err := c.CreateWorkflow(context.Background(), &models.Workflow{Name: "Board"})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", created.ID)
	assert.Equal(t, models.AccessLevelPrivate, created.AccessLevel)
}
