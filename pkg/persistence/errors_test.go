package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/certflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.False(t, persistence.IsInvalidSortField(workflowErr))
		assert.False(t, persistence.IsInvalidSortOrder(workflowErr))
		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Save", "workflow-123", persistence.ErrConcurrentUpdate)

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "modified concurrently")
		assert.True(t, persistence.IsConcurrentUpdate(err))
	})

	t.Run("message is included", func(t *testing.T) {
		err := &persistence.WorkflowError{Op: "Delete", Err: persistence.ErrWorkflowNotFound, Message: "gone"}

		assert.Equal(t, "Delete operation failed for workflow (none): gone (workflow not found)", err.Error())
	})
}

func TestListWorkflowsOptions_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    persistence.ListWorkflowsOptions
		want    persistence.ListWorkflowsOptions
		wantErr error
	}{
		{
			name: "defaults",
			opts: persistence.ListWorkflowsOptions{},
			want: persistence.ListWorkflowsOptions{Limit: 20, SortBy: "created_at", SortOrder: "desc"},
		},
		{
			name: "limit above maximum",
			opts: persistence.ListWorkflowsOptions{Limit: 500, Offset: -3, SortBy: "name", SortOrder: "asc"},
			want: persistence.ListWorkflowsOptions{Limit: 20, SortBy: "name", SortOrder: "asc"},
		},
		{
			name:    "sql injection attempt",
			opts:    persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows; --"},
			wantErr: persistence.ErrInvalidSortField,
		},
		{
			name:    "unknown order",
			opts:    persistence.ListWorkflowsOptions{SortOrder: "sideways"},
			wantErr: persistence.ErrInvalidSortOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Normalize()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
