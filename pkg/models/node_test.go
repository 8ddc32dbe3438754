package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSON_DispatchesPayloadByType(t *testing.T) {
	raw := []byte(`{
		"id": "node-1",
		"workflow_id": "wf-1",
		"node_type": "ACTION",
		"layer": "STRATEGIC",
		"position": {"x": 120, "y": 40},
		"data": {"label": "Onboard Client", "status": "in_progress", "from_template_id": "tpl-9"}
	}`)

	var node Node

	err := json.Unmarshal(raw, &node)
	require.NoError(t, err)

	action, ok := node.Data.(*ActionData)
	require.True(t, ok, "ACTION payload should decode to *ActionData")
	assert.Equal(t, "Onboard Client", action.Title)
	assert.Equal(t, "tpl-9", action.FromTemplateID)
	assert.Equal(t, "Onboard Client", node.Label())
	assert.Equal(t, 120.0, node.Position.X)
}

func TestNode_UnmarshalJSON_UnknownType(t *testing.T) {
	raw := []byte(`{"id": "node-1", "node_type": "GATEWAY", "layer": "STRATEGIC", "data": {}}`)

	var node Node

	err := json.Unmarshal(raw, &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestNode_UnmarshalJSON_EmptyPayload(t *testing.T) {
	raw := []byte(`{"id": "node-2", "node_type": "STICKY_NOTE", "layer": "TACTICAL", "parent_node_id": "node-1"}`)

	var node Node

	err := json.Unmarshal(raw, &node)
	require.NoError(t, err)
	require.IsType(t, &StickyNoteData{}, node.Data)
	assert.Empty(t, node.Label())
}

func TestNode_ParentConsistent(t *testing.T) {
	parent := "node-parent"

	tests := []struct {
		name   string
		layer  Layer
		parent *string
		want   bool
	}{
		{"strategic without parent", LayerStrategic, nil, true},
		{"strategic with parent", LayerStrategic, &parent, false},
		{"tactical with parent", LayerTactical, &parent, true},
		{"tactical without parent", LayerTactical, nil, false},
		{"execution without parent", LayerExecution, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node := &Node{Layer: tc.layer, ParentNodeID: tc.parent}
			assert.Equal(t, tc.want, node.ParentConsistent())
		})
	}
}

func TestMergeNodeData_PartialPatch(t *testing.T) {
	current := &TaskData{
		Title:       "Prepare kickoff deck",
		Status:      "todo",
		AssigneeIDs: []string{"user-1"},
	}

	merged, err := MergeNodeData(current, map[string]any{"status": "done"})
	require.NoError(t, err)

	task, ok := merged.(*TaskData)
	require.True(t, ok)
	assert.Equal(t, "done", task.Status)
	assert.Equal(t, "Prepare kickoff deck", task.Title, "unpatched fields keep their value")
	assert.Equal(t, []string{"user-1"}, task.AssigneeIDs)
}

func TestNode_Clone_Independent(t *testing.T) {
	parent := "node-parent"
	node := &Node{
		ID:           "node-1",
		Type:         NodeTypeBlocker,
		Layer:        LayerTactical,
		ParentNodeID: &parent,
		Data:         &BlockerData{Title: "Waiting on legal", BlockingNodeIDs: []string{"node-2"}},
	}

	clone := node.Clone()
	clone.Data.(*BlockerData).BlockingNodeIDs[0] = "node-9"
	*clone.ParentNodeID = "other"

	assert.Equal(t, "node-2", node.Data.(*BlockerData).BlockingNodeIDs[0])
	assert.Equal(t, "node-parent", *node.ParentNodeID)
}

func TestLayer_Next(t *testing.T) {
	next, ok := LayerStrategic.Next()
	require.True(t, ok)
	assert.Equal(t, LayerTactical, next)

	next, ok = LayerTactical.Next()
	require.True(t, ok)
	assert.Equal(t, LayerExecution, next)

	_, ok = LayerExecution.Next()
	assert.False(t, ok, "EXECUTION is terminal")
}
