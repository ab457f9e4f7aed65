package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/google/uuid"
)

// Merge applies a patch to the stored workflow, or builds a new workflow when
// the patch has no ID. existing is nil when nothing is stored under patch.ID.
// The result is a fresh value; existing is left untouched.
func Merge(existing *models.Workflow, patch *models.WorkflowPatch, now time.Time) (*models.Workflow, error) {
	if patch == nil {
		return nil, NewWorkflowError("Save", "", errors.New("empty patch"))
	}

	var merged models.Workflow

	switch {
	case patch.ID == "":
		id, err := uuid.NewV7()
		if err != nil {
			return nil, NewWorkflowError("Save", "", fmt.Errorf("failed to generate workflow id: %w", err))
		}

		merged = models.Workflow{
			ID:        id.String(),
			Trigger:   models.TriggerTypeManual,
			CreatedAt: now,
		}
	case existing == nil:
		return nil, NewWorkflowError("Save", patch.ID, ErrWorkflowNotFound)
	default:
		merged = *existing
	}

	patch.Apply(&merged)
	merged.UpdatedAt = now

	return &merged, nil
}
