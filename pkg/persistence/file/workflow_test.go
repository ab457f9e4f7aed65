package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence"
	"github.com/dukex/certflow/pkg/testutil"
	"github.com/dukex/certflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRepository_SaveCreatesAndMerges(t *testing.T) {
	testDir := t.TempDir()
	repo := NewWorkflowRepository(testDir)
	root := testutil.CreateCertificatePipeline()

	created, err := repo.Save(t.Context(), &models.WorkflowPatch{
		Name:        models.Ptr("Renew example.com"),
		Description: models.Ptr("nightly renewal"),
		Content:     root,
		Draft:       root,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.FileExists(t, filepath.Join(testDir, "workflows", created.ID+".json"))
	assert.False(t, created.CreatedAt.IsZero())

	updated, err := repo.Save(t.Context(), &models.WorkflowPatch{
		ID:       created.ID,
		HasDraft: models.Ptr(true),
	})
	require.NoError(t, err)
	assert.True(t, updated.HasDraft)
	assert.Equal(t, "nightly renewal", updated.Description)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	fetched, err := repo.GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.True(t, fetched.HasDraft)
	assert.Equal(t, testutil.DeployNodeID, fetched.Draft.Next.Next.ID)
	assert.Equal(t, models.ActionTypeDeploy, fetched.Draft.Next.Next.ActionType())
	assert.Equal(t, models.TriggerTypeManual, fetched.Content.Start.Trigger)
}

func TestWorkflowRepository_SaveUnknownID(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	_, err := repo.Save(t.Context(), &models.WorkflowPatch{ID: "missing", Name: models.Ptr("x")})
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_GetByIDNotFound(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	workflow, err := repo.GetByID(t.Context(), "non-existent")
	require.NoError(t, err)
	assert.Nil(t, workflow)
}

func TestWorkflowRepository_RejectsCorruptStoredTree(t *testing.T) {
	testDir := t.TempDir()
	repo := NewWorkflowRepository(testDir)

	data, err := json.Marshal(&models.Workflow{
		ID:      "corrupt",
		Name:    "Corrupt",
		Content: testutil.CreateCertificatePipeline(),
		Draft:   testutil.CreateCertificatePipeline().Next,
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(testDir, "workflows"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "workflows", "corrupt.json"), data, 0600))

	_, err = repo.GetByID(t.Context(), "corrupt")
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrMalformedTree)
	assert.ErrorIs(t, err, workflow.ErrInvalidStartNode)

	_, err = repo.ListWorkflows(t.Context(), persistence.ListWorkflowsOptions{})
	assert.ErrorIs(t, err, workflow.ErrMalformedTree)
}

func TestWorkflowRepository_Delete(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	created, err := repo.Save(t.Context(), &models.WorkflowPatch{Name: models.Ptr("to delete")})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(t.Context(), created.ID))

	workflow, err := repo.GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, workflow)

	err = repo.Delete(t.Context(), created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_ListWorkflows(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	result, err := repo.ListWorkflows(t.Context(), persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Workflows)

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := repo.Save(t.Context(), &models.WorkflowPatch{Name: models.Ptr(name)})
		require.NoError(t, err)
	}

	result, err = repo.ListWorkflows(t.Context(), persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "alpha", result.Workflows[0].Name)
	assert.Equal(t, "bravo", result.Workflows[1].Name)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.True(t, result.HasNextPage)
}

func TestWorkflowRepository_ListWorkflows_InvalidSortField(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	tests := []struct {
		name    string
		sortBy  string
		wantErr error
	}{
		{
			name:    "invalid sort field should return ErrInvalidSortField",
			sortBy:  "invalid_field",
			wantErr: persistence.ErrInvalidSortField,
		},
		{
			name:    "sql injection attempt should return ErrInvalidSortField",
			sortBy:  "name; DROP TABLE workflows; --",
			wantErr: persistence.ErrInvalidSortField,
		},
		{
			name:    "valid sort field updated_at should not return error",
			sortBy:  "updated_at",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.ListWorkflows(t.Context(), persistence.ListWorkflowsOptions{SortBy: tt.sortBy})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, persistence.IsInvalidSortField(err))

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestWorkflowRepository_ConcurrentSaves(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	created, err := repo.Save(t.Context(), &models.WorkflowPatch{Name: models.Ptr("concurrent")})
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.Save(t.Context(), &models.WorkflowPatch{ID: created.ID, Enabled: models.Ptr(i%2 == 0)})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	fetched, err := repo.GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "concurrent", fetched.Name)
}
