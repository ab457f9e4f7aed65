// Package main provides the Certflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/certflow/pkg/eventbus"
	"github.com/dukex/certflow/pkg/events"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/dukex/certflow/pkg/services"
	"github.com/dukex/certflow/pkg/web"
	"github.com/dukex/certflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    workflow.NewValidator(),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.eventBus, a.logger)
	designerService := services.NewDesigner(a.persistence, a.registry, a.eventBus, a.tracer, a.logger)
	publishingService := services.NewPublishing(a.persistence, a.registry, a.eventBus, a.tracer, a.logger)

	handlers := web.NewAPIHandlers(workflowService, designerService, publishingService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Certflow API")
	})

	handlers.Routes(app)

	return app
}

// WatchEvents logs every workflow event delivered by the event bus.
func (a *API) WatchEvents(ctx context.Context) error {
	eventTypes := []events.EventType{
		events.WorkflowDraftUpdatedEvent,
		events.WorkflowReleasedEvent,
		events.WorkflowDiscardedEvent,
		events.WorkflowEnabledChangedEvent,
		events.WorkflowDeletedEvent,
	}

	for _, eventType := range eventTypes {
		err := a.eventBus.Handle(eventType, func(ctx context.Context, event any) error {
			a.logger.InfoContext(ctx, "Workflow event", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
