// Package eventbus publishes and consumes workflow events over watermill.
package eventbus

import (
	"context"

	"github.com/dukex/certflow/pkg/events"
)

// Event is a workflow lifecycle notification.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is the side the authoring services depend on. The key keeps
// the events of one workflow ordered on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches received events to one handler per event type.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g. *events.WorkflowReleased.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
