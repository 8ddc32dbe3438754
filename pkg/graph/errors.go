// Package graph implements the in-memory authoritative graph store for
// the currently viewed workflow layer.
package graph

import "errors"

// Validation and lookup errors returned by store mutations. All are
// rejected synchronously and never reach persistence.
var (
	// ErrInvalidNodeType indicates a node type outside the closed set.
	ErrInvalidNodeType = errors.New("invalid node type")

	// ErrPayloadMismatch indicates a payload whose concrete type does not
	// belong to the requested node type.
	ErrPayloadMismatch = errors.New("payload does not match node type")

	// ErrEndpointMissing indicates a connection endpoint that is not part
	// of the loaded graph.
	ErrEndpointMissing = errors.New("connection endpoint not found")

	// ErrCrossLayerEdge indicates a connection whose endpoints live on
	// different layers.
	ErrCrossLayerEdge = errors.New("edge endpoints must share one layer")

	// ErrNodeNotFound indicates an operation on an unknown node id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotLoaded indicates a mutation before any scope was loaded.
	ErrNotLoaded = errors.New("no graph scope loaded")
)

// IsValidation reports whether the error is a synchronous validation
// rejection (as opposed to a missing-id lookup failure).
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrPayloadMismatch) ||
		errors.Is(err, ErrEndpointMissing) ||
		errors.Is(err, ErrCrossLayerEdge)
}

// IsNotFound reports whether the error is an unknown-id rejection.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}
