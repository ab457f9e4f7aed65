package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/workflow"
	"github.com/google/uuid"
)

const workflowColumns = `
			id
		  , name
		  , description
		  , content
		  , draft
		  , has_draft
		  , enabled
		  , trigger_type
		  , trigger_cron
		  , created_at
		  , updated_at`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// ListWorkflows returns a page of workflows. The sort column comes from an
// allowlist and is the only part of the query not bound as a parameter.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	where := "WHERE deleted_at IS NULL"
	args := make([]any, 0, 3)

	if opts.Enabled != nil {
		args = append(args, *opts.Enabled)
		where += fmt.Sprintf(" AND enabled = $%d", len(args))
	}

	var totalCount int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf("SELECT %s FROM workflows %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		workflowColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder), len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	query := "SELECT" + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// Save merges the patch under a row lock so concurrent partial saves of the
// same workflow serialize.
func (r *WorkflowRepository) Save(ctx context.Context, patch *models.WorkflowPatch) (*models.Workflow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing *models.Workflow

	if patch != nil && patch.ID != "" && uuid.Validate(patch.ID) == nil {
		query := "SELECT" + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

		existing, err = scanWorkflow(tx.QueryRowContext(ctx, query, patch.ID))
		if errors.Is(err, sql.ErrNoRows) {
			existing, err = nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to lock workflow %s: %w", patch.ID, err)
		}
	}

	workflow, err := persistence.Merge(existing, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	content, err := nodeValue(workflow.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}

	draft, err := nodeValue(workflow.Draft)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft: %w", err)
	}

	upsert := `
		INSERT INTO workflows (id, name, description, content, draft, has_draft,
enabled, trigger_type, trigger_cron, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			draft = EXCLUDED.draft,
			has_draft = EXCLUDED.has_draft,
			enabled = EXCLUDED.enabled,
			trigger_type = EXCLUDED.trigger_type,
			trigger_cron = EXCLUDED.trigger_cron,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, upsert,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		content,
		draft,
		workflow.HasDraft,
		workflow.Enabled,
		string(workflow.Trigger),
		workflow.TriggerCron,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return workflow, nil
}

// Delete soft deletes a workflow by setting deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
},
) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		content     []byte
		draft       []byte
		triggerType string
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&content,
		&draft,
		&workflow.HasDraft,
		&workflow.Enabled,
		&triggerType,
		&workflow.TriggerCron,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Trigger = models.TriggerType(triggerType)

	workflow.Content, err = decodeNode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of workflow %s: %w", workflow.ID, err)
	}

	workflow.Draft, err = decodeNode(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to decode draft of workflow %s: %w", workflow.ID, err)
	}

	return &workflow, nil
}

func decodeNode(data []byte) (*models.Node, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	return workflow.DecodeStored(data)
}

// nodeValue encodes a tree for a JSONB column; a missing tree is stored as NULL.
func nodeValue(node *models.Node) (any, error) {
	if node == nil {
		return nil, nil
	}

	data, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}

	return string(data), nil
}
