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

func newTemplateFixture(t *testing.T) (*Template, *models.Workflow, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	t.Cleanup(func() { _ = store.Close(t.Context()) })

	workflow, err := NewWorkflow(slog.Default(), store, nil).Create(t.Context(), &models.Workflow{Name: "Template fixture"})
	require.NoError(t, err)

	require.NoError(t, store.TemplateRepository().SaveTemplate(t.Context(), &models.ActionTemplate{
		ID:           "tpl-onboarding",
		ActionName:   "Onboard client",
		Category:     "sales",
		Resources:    []models.ResourceDescriptor{{Name: "Account manager", ResourceType: "person"}},
		Deliverables: []string{"Kickoff deck", "Signed SOW"},
	}))

	return NewTemplate(slog.Default(), store, nil), workflow, store
}

func TestTemplate_ListAndGet(t *testing.T) {
	service, _, _ := newTemplateFixture(t)

	templates, err := service.List(t.Context())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "Onboard client", templates[0].ActionName)

	_, err = service.Get(t.Context(), "tpl-missing")
	require.ErrorIs(t, err, persistence.ErrTemplateNotFound)
}

func TestTemplate_ExpandPersistsCluster(t *testing.T) {
	service, workflow, store := newTemplateFixture(t)

	result, err := service.Expand(t.Context(), workflow.ID, ExpandRequest{
		TemplateID: "tpl-onboarding",
		Layer:      models.LayerStrategic,
		Anchor:     models.Position{X: 300, Y: 120},
	})
	require.NoError(t, err)

	require.Len(t, result.Nodes, 4)
	require.Len(t, result.Edges, 3)

	action := result.Nodes[0]
	assert.Equal(t, models.NodeTypeAction, action.Type)
	assert.Equal(t, "tpl-onboarding", action.Data.(*models.ActionData).FromTemplateID)

	stored, err := store.GraphRepository().NodesByScope(t.Context(),
		persistence.GraphScope{WorkflowID: workflow.ID, Layer: models.LayerStrategic})
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestTemplate_ExpandValidatesScope(t *testing.T) {
	service, workflow, _ := newTemplateFixture(t)

	_, err := service.Expand(t.Context(), workflow.ID, ExpandRequest{
		TemplateID: "tpl-onboarding",
		Layer:      models.LayerTactical,
	})
	require.ErrorIs(t, err, ErrParentMismatch)

	_, err = service.Expand(t.Context(), "wf-missing", ExpandRequest{
		TemplateID: "tpl-onboarding",
		Layer:      models.LayerStrategic,
	})
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	_, err = service.Expand(t.Context(), workflow.ID, ExpandRequest{
		TemplateID: "tpl-missing",
		Layer:      models.LayerStrategic,
	})
	require.ErrorIs(t, err, persistence.ErrTemplateNotFound)
}
