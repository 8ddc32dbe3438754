package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/flowboard/pkg/models"
)

func actionNode(id, label string) *models.Node {
	return &models.Node{
		ID:   id,
		Type: models.NodeTypeAction,
		Data: &models.ActionData{Title: label},
	}
}

func TestDrillDown_DescendsThroughLayers(t *testing.T) {
	state := models.RootNavigationState()

	state, ok := DrillDown(state, actionNode("node-a", "Onboard Client"))
	require.True(t, ok)
	assert.Equal(t, models.LayerTactical, state.CurrentLayer)
	require.NotNil(t, state.CurrentParentNodeID)
	assert.Equal(t, "node-a", *state.CurrentParentNodeID)
	require.Len(t, state.Breadcrumb, 1)
	assert.Equal(t, "Onboard Client", state.Breadcrumb[0].Label)

	state, ok = DrillDown(state, actionNode("node-b", "Collect Documents"))
	require.True(t, ok)
	assert.Equal(t, models.LayerExecution, state.CurrentLayer)
	assert.Equal(t, 2, state.Depth())
}

func TestDrillDown_Rejections(t *testing.T) {
	t.Run("non-action node", func(t *testing.T) {
		state := models.RootNavigationState()

		after, ok := DrillDown(state, &models.Node{
			ID:   "node-r",
			Type: models.NodeTypeResource,
			Data: &models.ResourceData{Title: "CRM"},
		})
		assert.False(t, ok)
		assert.Equal(t, state, after, "state is unchanged on rejection")
	})

	t.Run("execution is terminal even for action nodes", func(t *testing.T) {
		state := models.RootNavigationState()
		state, _ = DrillDown(state, actionNode("node-a", "A"))
		state, _ = DrillDown(state, actionNode("node-b", "B"))

		after, ok := DrillDown(state, actionNode("node-c", "C"))
		assert.False(t, ok)
		assert.Equal(t, models.LayerExecution, after.CurrentLayer)
		assert.Equal(t, 2, after.Depth())
	})

	t.Run("nil node", func(t *testing.T) {
		state := models.RootNavigationState()

		_, ok := DrillDown(state, nil)
		assert.False(t, ok)
	})
}

func TestJumpTo_BreadcrumbRoundTrip(t *testing.T) {
	state := models.RootNavigationState()

	state, ok := DrillDown(state, actionNode("node-a", "A"))
	require.True(t, ok)
	afterFirst := state.Clone()

	state, ok = DrillDown(state, actionNode("node-b", "B"))
	require.True(t, ok)

	state, ok = JumpTo(state, 0)
	require.True(t, ok)

	assert.Equal(t, afterFirst.CurrentLayer, state.CurrentLayer)
	assert.Equal(t, *afterFirst.CurrentParentNodeID, *state.CurrentParentNodeID)
	assert.Equal(t, afterFirst.Breadcrumb, state.Breadcrumb)
}

func TestJumpTo_RootReset(t *testing.T) {
	state := models.RootNavigationState()
	state, _ = DrillDown(state, actionNode("node-a", "A"))
	state, _ = DrillDown(state, actionNode("node-b", "B"))

	state, ok := JumpTo(state, -1)
	require.True(t, ok)

	assert.Equal(t, models.LayerStrategic, state.CurrentLayer)
	assert.Nil(t, state.CurrentParentNodeID)
	assert.Empty(t, state.Breadcrumb)
}

func TestJumpTo_RejectsForwardAndOutOfRange(t *testing.T) {
	state := models.RootNavigationState()
	state, _ = DrillDown(state, actionNode("node-a", "A"))

	_, ok := JumpTo(state, 1)
	assert.False(t, ok, "jumping at the current depth is not a jump back")

	_, ok = JumpTo(state, -2)
	assert.False(t, ok)
}
