package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/workflow"
	redis "github.com/redis/go-redis/v9"
)

// maxSaveAttempts bounds the optimistic retries of Save.
const maxSaveAttempts = 5

// WorkflowRepository keeps each workflow under <prefix>:workflow:<id> and the
// set of ids under <prefix>:workflows.
type WorkflowRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(client redis.UniversalClient, logger *slog.Logger, prefix string) *WorkflowRepository {
	return &WorkflowRepository{client: client, logger: logger, prefix: prefix}
}

func (r *WorkflowRepository) key(id string) string {
	return r.prefix + ":workflow:" + id
}

func (r *WorkflowRepository) indexKey() string {
	return r.prefix + ":workflows"
}

// ListWorkflows loads every indexed workflow and pages through them in memory.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow ids: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = r.key(id)
		}

		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load workflows: %w", err)
		}

		for i, value := range values {
			raw, ok := value.(string)
			if !ok {
				r.logger.WarnContext(ctx, "Indexed workflow is missing", "id", ids[i])

				continue
			}

			workflow, err := decodeWorkflow([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("failed to decode workflow %s: %w", ids[i], err)
			}

			workflows = append(workflows, workflow)
		}
	}

	return persistence.ApplyListOptions(workflows, opts), nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.get(ctx, r.client, id)
}

// Save merges the patch inside a WATCH transaction and retries when another
// writer touched the workflow in between.
func (r *WorkflowRepository) Save(ctx context.Context, patch *models.WorkflowPatch) (*models.Workflow, error) {
	if patch == nil || patch.ID == "" {
		workflow, err := persistence.Merge(nil, patch, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		err = r.write(ctx, r.client, workflow)
		if err != nil {
			return nil, err
		}

		return workflow, nil
	}

	var saved *models.Workflow

	txf := func(tx *redis.Tx) error {
		existing, err := r.get(ctx, tx, patch.ID)
		if err != nil {
			return err
		}

		workflow, err := persistence.Merge(existing, patch, time.Now().UTC())
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return r.write(ctx, pipe, workflow)
		})
		if err != nil {
			return err
		}

		saved = workflow

		return nil
	}

	for range maxSaveAttempts {
		err := r.client.Watch(ctx, txf, r.key(patch.ID))
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.DebugContext(ctx, "Concurrent workflow update, retrying", "id", patch.ID)

			continue
		}

		if err != nil {
			return nil, err
		}

		return saved, nil
	}

	return nil, persistence.NewWorkflowError("Save", patch.ID, persistence.ErrConcurrentUpdate)
}

// Delete removes the workflow and its index entry.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, r.indexKey(), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) get(ctx context.Context, client redis.Cmdable, id string) (*models.Workflow, error) {
	raw, err := client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	workflow, err := decodeWorkflow(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) write(ctx context.Context, client redis.Cmdable, workflow *models.Workflow) error {
	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	err = client.Set(ctx, r.key(workflow.ID), data, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to store workflow %s: %w", workflow.ID, err)
	}

	err = client.SAdd(ctx, r.indexKey(), workflow.ID).Err()
	if err != nil {
		return fmt.Errorf("failed to index workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func decodeWorkflow(raw []byte) (*models.Workflow, error) {
	return workflow.DecodeWorkflow(raw)
}
