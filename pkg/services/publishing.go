package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/certflow/pkg/eventbus"
	"github.com/dukex/certflow/pkg/events"
	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/otelhelper"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/dukex/certflow/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPreviewRuns = 5
	MaxPreviewRuns     = 20
)

// Publishing moves trees between the draft and content slots of a workflow.
type Publishing struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewPublishing creates a new workflow publishing service. eventBus may be nil.
func NewPublishing(
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Publishing {
	return &Publishing{
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		tracer:      tracer,
		logger:      logger.With("module", "publishing_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Release validates the draft and promotes it to content, deriving the
// workflow's trigger fields from its start node.
func (p *Publishing) Release(ctx context.Context, workflowID string) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "publishing.Release",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	existing, err := fetchWorkflow(ctx, p.persistence, workflowID)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	if !existing.HasDraft || existing.Draft == nil {
		return nil, &ServiceError{Op: "Release", Code: "NO_DRAFT", Message: "workflow has no unreleased draft", Err: ErrNoDraft}
	}

	draft := existing.Draft

	err = p.validateForRelease(draft)
	if err != nil {
		recordError(span, err)

		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	method, err := workflow.GetExecuteMethod(draft)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.TriggerTypeKey, string(method.Type)))

	released, err := p.persistence.WorkflowRepository().Save(ctx, (&models.WorkflowPatch{
		ID:       workflowID,
		Content:  draft,
		HasDraft: models.Ptr(false),
	}).WithExecuteMethod(method))
	if err != nil {
		recordError(span, err)

		return nil, fmt.Errorf("failed to release workflow: %w", err)
	}

	p.logger.InfoContext(ctx, "Released workflow", "workflow_id", workflowID, "trigger", method.Type)

	publishEvent(ctx, p.eventBus, p.logger, workflowID, events.WorkflowReleased{
		BaseEvent:   events.NewBaseEvent(events.WorkflowReleasedEvent, workflowID),
		Trigger:     method.Type,
		TriggerCron: method.CronExpression,
	})

	return released, nil
}

// Discard resets the draft to the released content. Discarding a workflow
// without pending changes returns it unchanged.
func (p *Publishing) Discard(ctx context.Context, workflowID string) (*models.Workflow, error) {
	existing, err := fetchWorkflow(ctx, p.persistence, workflowID)
	if err != nil {
		return nil, err
	}

	if !existing.HasDraft || existing.Content == nil {
		return existing, nil
	}

	discarded, err := p.persistence.WorkflowRepository().Save(ctx, &models.WorkflowPatch{
		ID:       workflowID,
		Draft:    existing.Content,
		HasDraft: models.Ptr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discard draft: %w", err)
	}

	publishEvent(ctx, p.eventBus, p.logger, workflowID, events.WorkflowDiscarded{
		BaseEvent: events.NewBaseEvent(events.WorkflowDiscardedEvent, workflowID),
	})

	return discarded, nil
}

// SwitchEnable toggles whether the released workflow is active, refreshing the
// trigger fields from the content.
func (p *Publishing) SwitchEnable(ctx context.Context, workflowID string) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "publishing.SwitchEnable",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	existing, err := fetchWorkflow(ctx, p.persistence, workflowID)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	method, err := workflow.GetExecuteMethod(existing.Content)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	enabled := !existing.Enabled

	updated, err := p.persistence.WorkflowRepository().Save(ctx, (&models.WorkflowPatch{
		ID:      workflowID,
		Enabled: &enabled,
	}).WithExecuteMethod(method))
	if err != nil {
		recordError(span, err)

		return nil, fmt.Errorf("failed to switch workflow: %w", err)
	}

	p.logger.InfoContext(ctx, "Switched workflow", "workflow_id", workflowID, "enabled", enabled)

	publishEvent(ctx, p.eventBus, p.logger, workflowID, events.WorkflowEnabledChanged{
		BaseEvent:   events.NewBaseEvent(events.WorkflowEnabledChangedEvent, workflowID),
		Enabled:     enabled,
		Trigger:     method.Type,
		TriggerCron: method.CronExpression,
	})

	return updated, nil
}

// TriggerPreview describes how the released workflow runs.
type TriggerPreview struct {
	ExecuteMethod models.ExecuteMethod `json:"execute_method"`
	NextRuns      []time.Time          `json:"next_runs"`
}

// PreviewTrigger returns the execute method of the released content and, for
// scheduled workflows, its next fire times.
func (p *Publishing) PreviewTrigger(ctx context.Context, workflowID string, runs int) (*TriggerPreview, error) {
	existing, err := fetchWorkflow(ctx, p.persistence, workflowID)
	if err != nil {
		return nil, err
	}

	method, err := workflow.GetExecuteMethod(existing.Content)
	if err != nil {
		return nil, err
	}

	if runs <= 0 {
		runs = DefaultPreviewRuns
	}

	if runs > MaxPreviewRuns {
		runs = MaxPreviewRuns
	}

	next, err := method.NextRuns(p.now(), runs)
	if err != nil {
		return nil, err
	}

	return &TriggerPreview{ExecuteMethod: method, NextRuns: next}, nil
}

// validateForRelease ensures a draft is ready to become content.
func (p *Publishing) validateForRelease(draft *models.Node) error {
	err := workflow.Validate(draft)
	if err != nil {
		return err
	}

	err = p.registry.ValidateTree(draft)
	if err != nil {
		return err
	}

	return checkTreeReferences(p.registry, draft, draft)
}
