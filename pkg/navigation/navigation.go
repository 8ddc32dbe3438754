// Package navigation implements the layer navigation state machine:
// drill-down into an ACTION node's sub-graph and breadcrumb jump-back.
//
// Operations are pure: they take a NavigationState value and return the
// successor state plus a flag reporting whether the transition was
// legal. Illegal transitions return the input state unchanged; the UI
// is expected to disable the gestures before they reach this package.
package navigation

import "github.com/flowboard/flowboard/pkg/models"

// DrillDown descends from the current layer into the sub-graph anchored
// at the given node. Legal only from STRATEGIC or TACTICAL and only on
// ACTION nodes; EXECUTION is terminal.
func DrillDown(state models.NavigationState, node *models.Node) (models.NavigationState, bool) {
	if node == nil || node.Type != models.NodeTypeAction {
		return state, false
	}

	next, ok := state.CurrentLayer.Next()
	if !ok {
		return state, false
	}

	successor := state.Clone()
	successor.Breadcrumb = append(successor.Breadcrumb, models.Breadcrumb{
		Layer:  next,
		NodeID: node.ID,
		Label:  node.Label(),
	})
	successor.CurrentLayer = next

	nodeID := node.ID
	successor.CurrentParentNodeID = &nodeID

	return successor, true
}

// JumpTo returns to an earlier breadcrumb entry, truncating everything
// that was drilled below it. Index -1 resets to the STRATEGIC root.
// Jumps forward (at or beyond the current depth) are illegal: the
// breadcrumb only ever shortens.
func JumpTo(state models.NavigationState, index int) (models.NavigationState, bool) {
	if index < -1 || index >= len(state.Breadcrumb) {
		return state, false
	}

	if index == -1 {
		return models.RootNavigationState(), true
	}

	successor := state.Clone()
	successor.Breadcrumb = successor.Breadcrumb[:index+1]

	top := successor.Breadcrumb[index]
	successor.CurrentLayer = top.Layer

	nodeID := top.NodeID
	successor.CurrentParentNodeID = &nodeID

	return successor, true
}
