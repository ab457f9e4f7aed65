package services

import (
	"log/slog"
	"testing"

	"github.com/dukex/certflow/pkg/eventbus"
	"github.com/dukex/certflow/pkg/events"
	"github.com/dukex/certflow/pkg/mocks"
	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/persistence/file"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fixture struct {
	store      persistence.Persistence
	bus        *mocks.MockEventBus
	workflows  *Workflow
	designer   *Designer
	publishing *Publishing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultKinds()

	tracer := noop.NewTracerProvider().Tracer("test")

	return &fixture{
		store:      store,
		bus:        bus,
		workflows:  NewWorkflow(store, bus, slog.Default()),
		designer:   NewDesigner(store, reg, bus, tracer, slog.Default()),
		publishing: NewPublishing(store, reg, bus, tracer, slog.Default()),
	}
}

// createWorkflow stores a new workflow and returns it with its start node id.
func (f *fixture) createWorkflow(t *testing.T) (*models.Workflow, string) {
	t.Helper()

	created, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{Name: "Renew example.com"})
	require.NoError(t, err)

	return created, created.Draft.ID
}

func (f *fixture) assertPublished(t *testing.T, workflowID string, eventType events.EventType) {
	t.Helper()

	f.bus.AssertCalled(t, "Publish", mock.Anything, workflowID, mock.MatchedBy(func(event eventbus.Event) bool {
		return event.GetType() == eventType
	}))
}

func (f *fixture) assertNotPublished(t *testing.T, eventType events.EventType) {
	t.Helper()

	for _, call := range f.bus.Calls {
		event, ok := call.Arguments.Get(2).(eventbus.Event)
		if ok && event.GetType() == eventType {
			t.Fatalf("unexpected %s event", eventType)
		}
	}
}
