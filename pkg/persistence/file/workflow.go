package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/workflow"
)

// WorkflowRepository stores one JSON document per workflow under <root>/workflows.
type WorkflowRepository struct {
	root string // File system root for storing workflows
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return path.Join(wr.root, "workflows")
}

// ListWorkflows returns paginated and filtered workflows with in-memory operations.
func (wr *WorkflowRepository) ListWorkflows(_ context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	all := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := strings.TrimSuffix(file, ".json")

		workflow, err := wr.read(workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		if workflow != nil {
			all = append(all, workflow)
		}
	}

	return persistence.ApplyListOptions(all, opts), nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.read(workflowID)
}

// Save merges the patch into the stored document and writes it back.
func (wr *WorkflowRepository) Save(_ context.Context, patch *models.WorkflowPatch) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	var existing *models.Workflow

	if patch != nil && patch.ID != "" {
		var err error

		existing, err = wr.read(patch.ID)
		if err != nil {
			return nil, err
		}
	}

	workflow, err := persistence.Merge(existing, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	err = os.WriteFile(wr.filePath(workflow.ID), data, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return workflow, nil
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.filePath(id))

	if err != nil && os.IsNotExist(err) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func (wr *WorkflowRepository) filePath(id string) string {
	return filepath.Clean(path.Join(wr.dir(), filepath.Base(id)+".json"))
}

func (wr *WorkflowRepository) read(workflowID string) (*models.Workflow, error) {
	body, err := os.ReadFile(wr.filePath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	stored, err := workflow.DecodeWorkflow(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", workflowID, err)
	}

	return stored, nil
}
