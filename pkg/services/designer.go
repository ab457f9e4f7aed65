package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/certflow/pkg/eventbus"
	"github.com/dukex/certflow/pkg/events"
	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/otelhelper"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/dukex/certflow/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Designer edits the draft tree of a workflow. Every successful edit stores the
// new draft and marks it unreleased.
type Designer struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	editor      *workflow.Editor
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewDesigner creates a new designer service. eventBus may be nil.
func NewDesigner(
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Designer {
	return &Designer{
		persistence: persistence,
		registry:    registry,
		editor:      workflow.NewEditor(workflow.WithIDGenerator(uuid.NewString)),
		eventBus:    eventBus,
		tracer:      tracer,
		logger:      logger.With("module", "designer_service"),
	}
}

// AddNode inserts node after previousNodeID in the draft. A node without id
// gets a fresh one; a branch node without branches gets two placeholder branches.
func (d *Designer) AddNode(ctx context.Context, workflowID, previousNodeID string, node *models.Node) (*models.Workflow, error) {
	if node == nil {
		return nil, NewValidationError("AddNode", "NODE_REQUIRED", "node is required", ErrInvalidRequest)
	}

	detached := *node
	detached.Next = nil
	node = d.registry.PrepareTree(detached.Clone())

	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	if node.IsBranch() && len(node.Branches) == 0 {
		node.Branches = []*models.Node{
			models.NewPlaceholderNode(uuid.NewString()),
			models.NewPlaceholderNode(uuid.NewString()),
		}
	}

	return d.edit(ctx, workflowID, "AddNode", node.ID, func(root *models.Node) (*models.Node, error) {
		err := d.registry.ValidateTree(node)
		if err != nil {
			return nil, err
		}

		draft, err := d.editor.AddNode(root, previousNodeID, node)
		if err != nil {
			return nil, err
		}

		return draft, checkTreeReferences(d.registry, draft, node)
	})
}

// UpdateNode replaces the payload of a node in the draft, keeping its links.
func (d *Designer) UpdateNode(ctx context.Context, workflowID string, node *models.Node) (*models.Workflow, error) {
	if node == nil {
		return nil, NewValidationError("UpdateNode", "NODE_REQUIRED", "node is required", ErrInvalidRequest)
	}

	node = d.registry.Prepare(node.Clone())

	return d.edit(ctx, workflowID, "UpdateNode", node.ID, func(root *models.Node) (*models.Node, error) {
		err := d.registry.Validate(node)
		if err != nil {
			return nil, err
		}

		draft, err := d.editor.UpdateNode(root, node)
		if err != nil {
			return nil, err
		}

		return draft, checkReferences(d.registry, draft, node)
	})
}

// RemoveNode unlinks a node from the draft.
func (d *Designer) RemoveNode(ctx context.Context, workflowID, nodeID string) (*models.Workflow, error) {
	return d.edit(ctx, workflowID, "RemoveNode", nodeID, func(root *models.Node) (*models.Node, error) {
		return d.editor.RemoveNode(root, nodeID)
	})
}

// AddBranch appends a placeholder branch to a branch node of the draft.
func (d *Designer) AddBranch(ctx context.Context, workflowID, branchNodeID string) (*models.Workflow, error) {
	return d.edit(ctx, workflowID, "AddBranch", branchNodeID, func(root *models.Node) (*models.Node, error) {
		return d.editor.AddBranch(root, branchNodeID)
	})
}

// RemoveBranch drops the branch at index from a branch node of the draft.
func (d *Designer) RemoveBranch(ctx context.Context, workflowID, branchNodeID string, index int) (*models.Workflow, error) {
	return d.edit(ctx, workflowID, "RemoveBranch", branchNodeID, func(root *models.Node) (*models.Node, error) {
		return d.editor.RemoveBranch(root, branchNodeID, index)
	})
}

// OutputsBefore lists the ancestors of nodeID in the draft that produce an
// output of the given category.
func (d *Designer) OutputsBefore(ctx context.Context, workflowID, nodeID, category string) ([]*models.Node, error) {
	existing, err := fetchWorkflow(ctx, d.persistence, workflowID)
	if err != nil {
		return nil, err
	}

	return workflow.GetWorkflowOutputBeforeID(existing.EditableTree(), nodeID, category)
}

func (d *Designer) edit(
	ctx context.Context,
	workflowID, op, nodeID string,
	apply func(root *models.Node) (*models.Node, error),
) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer."+op,
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.NodeIDKey, nodeID),
		attribute.String(otelhelper.OperationKey, op),
	)
	defer span.End()

	existing, err := fetchWorkflow(ctx, d.persistence, workflowID)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	root := existing.EditableTree()

	err = workflow.CheckIntact(op, root)
	if err != nil {
		recordError(span, err)
		d.logger.ErrorContext(ctx, "Stored draft is corrupted", "workflow_id", workflowID, "error", err)

		return nil, err
	}

	draft, err := apply(root)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	updated, err := d.persistence.WorkflowRepository().Save(ctx, &models.WorkflowPatch{
		ID:       workflowID,
		Draft:    draft,
		HasDraft: models.Ptr(true),
	})
	if err != nil {
		recordError(span, err)

		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	d.logger.DebugContext(ctx, "Draft updated", "workflow_id", workflowID, "operation", op, "node_id", nodeID)

	publishEvent(ctx, d.eventBus, d.logger, workflowID, events.WorkflowDraftUpdated{
		BaseEvent: events.NewBaseEvent(events.WorkflowDraftUpdatedEvent, workflowID),
		Operation: op,
		NodeID:    nodeID,
	})

	return updated, nil
}

// checkReferences verifies that every input reference held by node's config
// points at an output produced by one of its ancestors in root.
func checkReferences(reg *registry.Registry, root, node *models.Node) error {
	for _, input := range reg.InputsOf(node) {
		value, ok := node.Action.Config[input.Name]
		if !ok {
			continue
		}

		reference, ok := value.(string)
		sourceID, outputName, found := strings.Cut(reference, "#")

		if !ok || !found {
			return NewValidationError(
				"checkReferences",
				"INVALID_OUTPUT_REFERENCE",
				fmt.Sprintf("node %s: %s must reference an output as <nodeID>#<outputName>", node.ID, input.Name),
				ErrInvalidOutputReference,
			)
		}

		sources, err := workflow.GetWorkflowOutputBeforeID(root, node.ID, input.Type)
		if err != nil {
			return err
		}

		if !producesOutput(sources, sourceID, outputName, input.Type) {
			return NewValidationError(
				"checkReferences",
				"INVALID_OUTPUT_REFERENCE",
				fmt.Sprintf("node %s: %s references %s, which is not a %s output produced before it", node.ID, input.Name, reference, input.Type),
				ErrInvalidOutputReference,
			)
		}
	}

	return nil
}

// checkTreeReferences runs checkReferences for every node of subtree, which
// must be part of root.
func checkTreeReferences(reg *registry.Registry, root, subtree *models.Node) error {
	return workflow.Walk(subtree, func(node *models.Node, _ workflow.Path) error {
		return checkReferences(reg, root, node)
	})
}

func producesOutput(sources []*models.Node, sourceID, outputName, outputType string) bool {
	for _, source := range sources {
		if source.ID != sourceID {
			continue
		}

		for _, output := range source.Output {
			if output.Name == outputName && output.Type == outputType {
				return true
			}
		}
	}

	return false
}
