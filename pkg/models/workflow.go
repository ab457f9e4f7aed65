package models

import "time"

// Workflow is the persisted envelope around a released tree and its editable draft.
type Workflow struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"                   validate:"required,min=3"`
	Description string      `json:"description"`
	Content     *Node       `json:"content,omitempty"`     // Last released tree
	Draft       *Node       `json:"draft,omitempty"`       // Tree being edited
	HasDraft    bool        `json:"has_draft"`             // Draft differs from content and is unreleased
	Enabled     bool        `json:"enabled"`               // Released workflow is active
	Trigger     TriggerType `json:"trigger"`               // Denormalized from the content start node
	TriggerCron string      `json:"trigger_cron,omitempty"` // Denormalized from the content start node
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EditableTree returns the tree edits apply to: the draft, or the content when
// no draft was ever stored.
func (w *Workflow) EditableTree() *Node {
	if w.Draft != nil {
		return w.Draft
	}

	return w.Content
}

// WorkflowPatch is a partial workflow update. Nil fields are left untouched;
// an empty ID asks the store to create a new workflow.
type WorkflowPatch struct {
	ID          string
	Name        *string
	Description *string
	Content     *Node
	Draft       *Node
	HasDraft    *bool
	Enabled     *bool
	Trigger     *TriggerType
	TriggerCron *string
}

// Apply merges the patch into the workflow.
func (p *WorkflowPatch) Apply(workflow *Workflow) {
	if p.Name != nil {
		workflow.Name = *p.Name
	}

	if p.Description != nil {
		workflow.Description = *p.Description
	}

	if p.Content != nil {
		workflow.Content = p.Content
	}

	if p.Draft != nil {
		workflow.Draft = p.Draft
	}

	if p.HasDraft != nil {
		workflow.HasDraft = *p.HasDraft
	}

	if p.Enabled != nil {
		workflow.Enabled = *p.Enabled
	}

	if p.Trigger != nil {
		workflow.Trigger = *p.Trigger
	}

	if p.TriggerCron != nil {
		workflow.TriggerCron = *p.TriggerCron
	}
}

// WithExecuteMethod sets the denormalized trigger fields.
func (p *WorkflowPatch) WithExecuteMethod(method ExecuteMethod) *WorkflowPatch {
	p.Trigger = &method.Type
	p.TriggerCron = &method.CronExpression

	return p
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
