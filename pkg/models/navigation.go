package models

import "slices"

// Breadcrumb is one prior drill-down step. Insertion order is drill-down
// order; jumping back truncates the trail.
type Breadcrumb struct {
	Layer  Layer  `json:"layer"`
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
}

// NavigationState is the current position in the layer hierarchy. It is
// a plain value owned by the caller, not ambient state: navigation
// operations take a state and return the successor state.
//
// Invariant: len(Breadcrumb) equals the drill-down depth, 0 at the
// STRATEGIC root.
type NavigationState struct {
	CurrentLayer        Layer        `json:"current_layer"`
	CurrentParentNodeID *string      `json:"current_parent_node_id,omitempty"`
	Breadcrumb          []Breadcrumb `json:"breadcrumb"`
}

// RootNavigationState returns the state at the STRATEGIC root with an
// empty breadcrumb trail.
func RootNavigationState() NavigationState {
	return NavigationState{
		CurrentLayer: LayerStrategic,
		Breadcrumb:   []Breadcrumb{},
	}
}

// Depth returns the drill-down depth of the state.
func (s NavigationState) Depth() int {
	return len(s.Breadcrumb)
}

// Clone returns a copy with an independent breadcrumb slice.
func (s NavigationState) Clone() NavigationState {
	clone := s
	clone.Breadcrumb = slices.Clone(s.Breadcrumb)

	if s.CurrentParentNodeID != nil {
		parent := *s.CurrentParentNodeID
		clone.CurrentParentNodeID = &parent
	}

	return clone
}
