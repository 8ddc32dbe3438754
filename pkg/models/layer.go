package models

// Layer is one of the three nesting depths of the workflow hierarchy.
// EXECUTION is terminal: there is no layer below it.
type Layer string

const (
	LayerStrategic Layer = "STRATEGIC"
	LayerTactical  Layer = "TACTICAL"
	LayerExecution Layer = "EXECUTION"
)

// Valid reports whether l is a member of the closed layer set.
func (l Layer) Valid() bool {
	switch l {
	case LayerStrategic, LayerTactical, LayerExecution:
		return true
	}

	return false
}

// Next returns the layer one level deeper. The second return value is
// false when called on EXECUTION.
func (l Layer) Next() (Layer, bool) {
	switch l {
	case LayerStrategic:
		return LayerTactical, true
	case LayerTactical:
		return LayerExecution, true
	}

	return "", false
}

// Depth returns the drill-down depth of the layer, 0 at the root.
func (l Layer) Depth() int {
	switch l {
	case LayerTactical:
		return 1
	case LayerExecution:
		return 2
	}

	return 0
}
