package persistence_test

import (
	"errors"
	"testing"

	"github.com/flowboard/flowboard/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions unwrap context wrappers", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "wf-123", persistence.ErrWorkflowNotFound)
		graphErr := persistence.NewGraphError("DeleteNode", "wf-123", "node-9", persistence.ErrNodeNotFound)
		versionErr := persistence.NewWorkflowError("ReplaceScope", "wf-123", persistence.ErrVersionConflict)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsNodeNotFound(graphErr))
		assert.True(t, persistence.IsVersionConflict(versionErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.True(t, errors.Is(graphErr, persistence.ErrNodeNotFound))
	})

	t.Run("workflow error carries operation context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Save", "wf-123", persistence.ErrWorkflowAlreadyExists)

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "wf-123")
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("graph error carries element context", func(t *testing.T) {
		err := persistence.NewGraphError("SaveEdge", "wf-123", "edge-4", persistence.ErrEdgeNotFound)

		assert.Contains(t, err.Error(), "SaveEdge")
		assert.Contains(t, err.Error(), "edge-4")
		assert.Contains(t, err.Error(), "wf-123")
	})
}
