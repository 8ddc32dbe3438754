// Package events defines the change notifications the API publishes
// when workflows and their graphs mutate.
package events

import (
	"time"

	"github.com/flowboard/flowboard/pkg/models"
)

type EventType string

// Topic carries every flowboard change event.
const Topic = "flowboard.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowCreatedEvent EventType = "workflow.created"
	WorkflowDeletedEvent EventType = "workflow.deleted"

	// Graph change events.
	GraphBatchSavedEvent  EventType = "graph.batch_saved"
	GraphNodeDeletedEvent EventType = "graph.node_deleted"

	// Catalog events.
	TemplateExpandedEvent EventType = "template.expanded"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowCreated struct {
	BaseEvent

	Name        string             `json:"name"`
	AccessLevel models.AccessLevel `json:"access_level"`
	Owner       string             `json:"owner,omitempty"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

// GraphBatchSaved is published for every accepted batch save. Version is
// the workflow version the save produced.
type GraphBatchSaved struct {
	BaseEvent

	Layer        models.Layer `json:"layer"`
	ParentNodeID *string      `json:"parent_node_id,omitempty"`
	Version      int64        `json:"version"`
	NodeCount    int          `json:"node_count"`
	EdgeCount    int          `json:"edge_count"`
}

func (g GraphBatchSaved) GetType() EventType {
	return GraphBatchSavedEvent
}

// GraphNodeDeleted is published after a node delete, including the size
// of the descendant cascade it triggered.
type GraphNodeDeleted struct {
	BaseEvent

	NodeID        string `json:"node_id"`
	CascadedNodes int    `json:"cascaded_nodes"`
}

func (g GraphNodeDeleted) GetType() EventType {
	return GraphNodeDeletedEvent
}

type TemplateExpanded struct {
	BaseEvent

	TemplateID   string `json:"template_id"`
	ActionNodeID string `json:"action_node_id"`
	NodeCount    int    `json:"node_count"`
	EdgeCount    int    `json:"edge_count"`
}

func (t TemplateExpanded) GetType() EventType {
	return TemplateExpandedEvent
}
