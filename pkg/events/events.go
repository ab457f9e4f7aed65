// Package events defines the domain events emitted when a workflow changes.
package events

import (
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow event.
const Topic = "certflow.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowDraftUpdatedEvent   EventType = "workflow.draft_updated"
	WorkflowReleasedEvent       EventType = "workflow.released"
	WorkflowDiscardedEvent      EventType = "workflow.discarded"
	WorkflowEnabledChangedEvent EventType = "workflow.enabled_changed"
	WorkflowDeletedEvent        EventType = "workflow.deleted"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WorkflowDraftUpdated is emitted after an edit of the draft tree.
type WorkflowDraftUpdated struct {
	BaseEvent

	Operation string `json:"operation"`         // Edit that produced the draft (e.g. "AddNode")
	NodeID    string `json:"node_id,omitempty"` // Node the edit addressed
}

func (w WorkflowDraftUpdated) GetType() EventType {
	return WorkflowDraftUpdatedEvent
}

// WorkflowReleased is emitted after the draft was promoted to content.
type WorkflowReleased struct {
	BaseEvent

	Trigger     models.TriggerType `json:"trigger"`
	TriggerCron string             `json:"trigger_cron,omitempty"`
}

func (w WorkflowReleased) GetType() EventType {
	return WorkflowReleasedEvent
}

type WorkflowDiscarded struct {
	BaseEvent
}

func (w WorkflowDiscarded) GetType() EventType {
	return WorkflowDiscardedEvent
}

type WorkflowEnabledChanged struct {
	BaseEvent

	Enabled     bool               `json:"enabled"`
	Trigger     models.TriggerType `json:"trigger"`
	TriggerCron string             `json:"trigger_cron,omitempty"`
}

func (w WorkflowEnabledChanged) GetType() EventType {
	return WorkflowEnabledChangedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
