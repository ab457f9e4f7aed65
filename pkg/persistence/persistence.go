// Package persistence provides the data storage abstraction for workflows.
package persistence

import (
	"context"

	"github.com/dukex/certflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows. GetByID returns nil without error when
// the workflow does not exist.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// Save merges the patch into the stored workflow and returns the result.
	// A patch without ID creates a new workflow with a UUIDv7 id.
	Save(ctx context.Context, patch *models.WorkflowPatch) (*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ListWorkflowsOptions filters, sorts and paginates ListWorkflows.
type ListWorkflowsOptions struct {
	Limit     int
	Offset    int
	SortBy    string // created_at, updated_at or name
	SortOrder string // asc or desc
	Enabled   *bool
}

type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var allowedSorts = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// Normalize applies defaults and checks the sort parameters against an allowlist.
func (o ListWorkflowsOptions) Normalize() (ListWorkflowsOptions, error) {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	if !allowedSorts[o.SortBy] {
		return o, NewWorkflowError("ListWorkflows", "", ErrInvalidSortField)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return o, NewWorkflowError("ListWorkflows", "", ErrInvalidSortOrder)
	}

	return o, nil
}
