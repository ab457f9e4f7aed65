// Package services implements the workflow authoring use cases on top of the
// tree engine, the action kind registry and the persistence layer.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/certflow/pkg/eventbus"
	"github.com/dukex/certflow/pkg/events"
	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/google/uuid"
)

type Workflow struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service. eventBus may be nil.
func NewWorkflow(persistence persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: persistence,
		eventBus:    eventBus,
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest contains the base info of a new workflow.
type CreateWorkflowRequest struct {
	Name        string
	Description string
}

// Create stores a new workflow whose content and draft hold a lone start node
// with a manual trigger.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("Create", "WORKFLOW_NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	root := models.NewStartNode(uuid.NewString(), "Start")

	created, err := w.persistence.WorkflowRepository().Save(ctx, &models.WorkflowPatch{
		Name:        &name,
		Description: &req.Description,
		Content:     root,
		Draft:       root,
		HasDraft:    models.Ptr(false),
		Enabled:     models.Ptr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Created workflow", "workflow_id", created.ID, "name", created.Name)

	return created, nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Enabled *bool

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*persistence.WorkflowListResult, error) {
	opts, err := persistence.ListWorkflowsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Enabled:   req.Enabled,
	}.Normalize()
	if err != nil {
		return nil, listOptionsError(opts, err)
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) || persistence.IsInvalidSortOrder(err) {
			return nil, listOptionsError(opts, err)
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return result, nil
}

func listOptionsError(opts persistence.ListWorkflowsOptions, err error) error {
	if persistence.IsInvalidSortField(err) {
		return NewValidationError(
			"ListWorkflows",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: created_at, updated_at, name", opts.SortBy),
			ErrInvalidSortField,
		)
	}

	return NewValidationError(
		"ListWorkflows",
		"INVALID_SORT_ORDER",
		fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", opts.SortOrder),
		ErrInvalidSortOrder,
	)
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fetchWorkflow(ctx, w.persistence, id)
}

// UpdateBaseInfoRequest holds the base info fields to change. Nil fields are kept.
type UpdateBaseInfoRequest struct {
	Name        *string
	Description *string
}

// SetBaseInfo updates the name and description of a workflow.
func (w *Workflow) SetBaseInfo(ctx context.Context, id string, req UpdateBaseInfoRequest) (*models.Workflow, error) {
	patch := &models.WorkflowPatch{ID: id, Description: req.Description}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("SetBaseInfo", "WORKFLOW_NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
		}

		patch.Name = &name
	}

	_, err := fetchWorkflow(ctx, w.persistence, id)
	if err != nil {
		return nil, err
	}

	updated, err := w.persistence.WorkflowRepository().Save(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return updated, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	err := w.persistence.WorkflowRepository().Delete(ctx, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return ErrWorkflowNotFound
		}

		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Deleted workflow", "workflow_id", id)

	publishEvent(ctx, w.eventBus, w.logger, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
	})

	return nil
}

func fetchWorkflow(ctx context.Context, store persistence.Persistence, id string) (*models.Workflow, error) {
	workflow, err := store.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// publishEvent sends an event after a successful save. Delivery failures are
// logged; the stored state is already committed.
func publishEvent(ctx context.Context, bus eventbus.EventPublisher, logger *slog.Logger, workflowID string, event eventbus.Event) {
	if bus == nil {
		return
	}

	err := bus.Publish(ctx, workflowID, event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish workflow event",
			"workflow_id", workflowID,
			"event_type", event.GetType(),
			"error", err,
		)
	}
}
