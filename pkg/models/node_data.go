package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

// NodeData is the polymorphic node payload, one concrete type per member
// of the closed node type set.
type NodeData interface {
	// Kind returns the node type this payload belongs to.
	Kind() NodeType
	// Label returns the payload's display label.
	Label() string

	clone() NodeData
}

// IssueData is the payload of an ISSUE node.
type IssueData struct {
	Title       string `json:"label"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (d *IssueData) Kind() NodeType { return NodeTypeIssue }
func (d *IssueData) Label() string  { return d.Title }

func (d *IssueData) clone() NodeData {
	clone := *d

	return &clone
}

// ActionData is the payload of an ACTION node. ACTION nodes are the only
// drill-down anchors; FromTemplateID records template provenance when the
// node was created by expansion.
type ActionData struct {
	Title          string   `json:"label"`
	Description    string   `json:"description,omitempty"`
	AssigneeIDs    []string `json:"assignee_ids,omitempty"`
	Status         string   `json:"status,omitempty"`
	FromTemplateID string   `json:"from_template_id,omitempty"`
}

func (d *ActionData) Kind() NodeType { return NodeTypeAction }
func (d *ActionData) Label() string  { return d.Title }

func (d *ActionData) clone() NodeData {
	clone := *d
	clone.AssigneeIDs = slices.Clone(d.AssigneeIDs)

	return &clone
}

// ResourceData is the payload of a RESOURCE node.
type ResourceData struct {
	Title        string `json:"label"`
	Description  string `json:"description,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	SoftwareRef  string `json:"software_ref,omitempty"`
}

func (d *ResourceData) Kind() NodeType { return NodeTypeResource }
func (d *ResourceData) Label() string  { return d.Title }

func (d *ResourceData) clone() NodeData {
	clone := *d

	return &clone
}

// DeliverableData is the payload of a DELIVERABLE node.
type DeliverableData struct {
	Title       string `json:"label"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (d *DeliverableData) Kind() NodeType { return NodeTypeDeliverable }
func (d *DeliverableData) Label() string  { return d.Title }

func (d *DeliverableData) clone() NodeData {
	clone := *d

	return &clone
}

// StickyNoteData is the payload of a STICKY_NOTE node. ColorHint is an
// opaque string for the UI collaborator.
type StickyNoteData struct {
	Text      string `json:"text"`
	ColorHint string `json:"color_hint,omitempty"`
}

func (d *StickyNoteData) Kind() NodeType { return NodeTypeStickyNote }
func (d *StickyNoteData) Label() string  { return d.Text }

func (d *StickyNoteData) clone() NodeData {
	clone := *d

	return &clone
}

// TaskData is the payload of a TASK node.
type TaskData struct {
	Title       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	AssigneeIDs []string `json:"assignee_ids,omitempty"`
	Status      string   `json:"status,omitempty"`
	Checklist   []string `json:"checklist,omitempty"`
}

func (d *TaskData) Kind() NodeType { return NodeTypeTask }
func (d *TaskData) Label() string  { return d.Title }

func (d *TaskData) clone() NodeData {
	clone := *d
	clone.AssigneeIDs = slices.Clone(d.AssigneeIDs)
	clone.Checklist = slices.Clone(d.Checklist)

	return &clone
}

// BlockerData is the payload of a BLOCKER node.
type BlockerData struct {
	Title           string   `json:"label"`
	Description     string   `json:"description,omitempty"`
	BlockingNodeIDs []string `json:"blocking_node_ids,omitempty"`
	Resolved        bool     `json:"resolved"`
}

func (d *BlockerData) Kind() NodeType { return NodeTypeBlocker }
func (d *BlockerData) Label() string  { return d.Title }

func (d *BlockerData) clone() NodeData {
	clone := *d
	clone.BlockingNodeIDs = slices.Clone(d.BlockingNodeIDs)

	return &clone
}

// NewNodeData returns the zero payload for the given node type, or nil if
// the type is outside the closed set.
func NewNodeData(nodeType NodeType) NodeData {
	switch nodeType {
	case NodeTypeIssue:
		return &IssueData{}
	case NodeTypeAction:
		return &ActionData{}
	case NodeTypeResource:
		return &ResourceData{}
	case NodeTypeDeliverable:
		return &DeliverableData{}
	case NodeTypeStickyNote:
		return &StickyNoteData{}
	case NodeTypeTask:
		return &TaskData{}
	case NodeTypeBlocker:
		return &BlockerData{}
	}

	return nil
}

// DecodeNodeData decodes a raw JSON payload into the concrete type for
// the given node type. An empty payload yields the zero payload.
func DecodeNodeData(nodeType NodeType, raw json.RawMessage) (NodeData, error) {
	data := NewNodeData(nodeType)
	if data == nil {
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}

	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", nodeType, err)
	}

	return data, nil
}

// MergeNodeData overlays a partial payload onto an existing one and
// returns the merged payload. Fields absent from the patch keep their
// current value; the payload's concrete type never changes.
func MergeNodeData(current NodeData, patch map[string]any) (NodeData, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode current payload: %w", err)
	}

	merged := make(map[string]any)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("decode current payload: %w", err)
	}

	for key, value := range patch {
		merged[key] = value
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged payload: %w", err)
	}

	return DecodeNodeData(current.Kind(), raw)
}
