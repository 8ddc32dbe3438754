package models

import (
	"encoding/json"
	"fmt"
)

// NodeType is the closed set of node kinds the graph engine accepts.
type NodeType string

const (
	NodeTypeIssue       NodeType = "ISSUE"
	NodeTypeAction      NodeType = "ACTION"
	NodeTypeResource    NodeType = "RESOURCE"
	NodeTypeDeliverable NodeType = "DELIVERABLE"
	NodeTypeStickyNote  NodeType = "STICKY_NOTE"
	NodeTypeTask        NodeType = "TASK"
	NodeTypeBlocker     NodeType = "BLOCKER"
)

// NodeTypes lists every member of the closed set.
var NodeTypes = []NodeType{
	NodeTypeIssue,
	NodeTypeAction,
	NodeTypeResource,
	NodeTypeDeliverable,
	NodeTypeStickyNote,
	NodeTypeTask,
	NodeTypeBlocker,
}

// Valid reports whether t is a member of the closed node type set.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeIssue, NodeTypeAction, NodeTypeResource, NodeTypeDeliverable,
		NodeTypeStickyNote, NodeTypeTask, NodeTypeBlocker:
		return true
	}

	return false
}

// Position is a node's 2D canvas coordinate. Rendering is the UI
// collaborator's concern; the engine only stores and offsets it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed node instance in a workflow graph.
//
// A node's layer and parent are consistent by invariant: STRATEGIC nodes
// have no parent, TACTICAL and EXECUTION nodes always reference the
// ACTION node in the layer above whose drill-down exposes them.
type Node struct {
	ID           string   `json:"id"             validate:"required"`
	WorkflowID   string   `json:"workflow_id"    validate:"required"`
	Type         NodeType `json:"node_type"      validate:"required"`
	Layer        Layer    `json:"layer"          validate:"required"`
	ParentNodeID *string  `json:"parent_node_id,omitempty"`
	Position     Position `json:"position"`
	Data         NodeData `json:"data"`
}

// Label returns the node's display label, or the empty string for
// payloads without one.
func (n *Node) Label() string {
	if n.Data == nil {
		return ""
	}

	return n.Data.Label()
}

// ParentConsistent reports whether the node's layer and parent reference
// satisfy the containment invariant.
func (n *Node) ParentConsistent() bool {
	if n.Layer == LayerStrategic {
		return n.ParentNodeID == nil
	}

	return n.ParentNodeID != nil && *n.ParentNodeID != ""
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	clone := *n

	if n.ParentNodeID != nil {
		parent := *n.ParentNodeID
		clone.ParentNodeID = &parent
	}

	if n.Data != nil {
		clone.Data = n.Data.clone()
	}

	return &clone
}

// nodeEnvelope mirrors Node with a raw payload so the data field can be
// decoded after the node type is known.
type nodeEnvelope struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	Type         NodeType        `json:"node_type"`
	Layer        Layer           `json:"layer"`
	ParentNodeID *string         `json:"parent_node_id,omitempty"`
	Position     Position        `json:"position"`
	Data         json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the polymorphic data payload according to the
// node_type tag.
func (n *Node) UnmarshalJSON(raw []byte) error {
	var envelope nodeEnvelope

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}

	data, err := DecodeNodeData(envelope.Type, envelope.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", envelope.ID, err)
	}

	n.ID = envelope.ID
	n.WorkflowID = envelope.WorkflowID
	n.Type = envelope.Type
	n.Layer = envelope.Layer
	n.ParentNodeID = envelope.ParentNodeID
	n.Position = envelope.Position
	n.Data = data

	return nil
}
