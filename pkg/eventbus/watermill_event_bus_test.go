package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/certflow/pkg/channels/gochannel"
	"github.com/dukex/certflow/pkg/eventbus"
	"github.com/dukex/certflow/pkg/events"
	"github.com/dukex/certflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan *events.WorkflowReleased, 1)

	require.NoError(t, bus.Handle(events.WorkflowReleasedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowReleased)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	published := events.WorkflowReleased{
		BaseEvent:   events.NewBaseEvent(events.WorkflowReleasedEvent, "wf-1"),
		Trigger:     models.TriggerTypeScheduled,
		TriggerCron: "0 0 * * *",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", published))

	select {
	case event := <-received:
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, models.TriggerTypeScheduled, event.Trigger)
		assert.Equal(t, "0 0 * * *", event.TriggerCron)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.WorkflowDeletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowDiscarded{
		BaseEvent: events.NewBaseEvent(events.WorkflowDiscardedEvent, "wf-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, "wf-1"),
	}))

	select {
	case event := <-received:
		assert.IsType(t, &events.WorkflowDeleted{}, event)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	assert.NotEmpty(t, bus.GenerateID())
}
