// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/google/uuid"
)

// Fixed ids used by the pipeline builders.
const (
	StartNodeID   = "start"
	ApplyNodeID   = "apply-1"
	DeployNodeID  = "deploy-1"
	NotifyNodeID  = "notify-1"
	BranchNodeID  = "branch-1"
	DeployANodeID = "deploy-a"
	DeployBNodeID = "deploy-b"
)

// CertificateOutput is the output declared by apply nodes.
func CertificateOutput() models.Output {
	return models.Output{
		Name:     "certificate",
		Type:     models.OutputTypeCertificate,
		Label:    "Certificate",
		Required: true,
	}
}

// CreateTestNode creates a test action node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := models.NewActionNode(
		uuid.New().String(),
		"Test Node",
		models.ActionTypeNotify,
		map[string]any{"channel": "email", "subject": "test", "message": "test"},
	)

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithActionType sets the action type of an action node.
func WithActionType(actionType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Action.Type = actionType
	}
}

// WithConfig sets the action configuration.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Action.Config = config
	}
}

// WithOutput sets the declared outputs.
func WithOutput(outputs ...models.Output) func(*models.Node) {
	return func(n *models.Node) {
		n.Output = outputs
	}
}

// WithNext links a successor.
func WithNext(next *models.Node) func(*models.Node) {
	return func(n *models.Node) {
		n.Next = next
	}
}

// CreateApplyNode creates an apply node declaring a certificate output.
func CreateApplyNode(id string) *models.Node {
	return models.NewActionNode(id, "Apply "+id, models.ActionTypeApply, map[string]any{
		"domains": "example.com",
		"email":   "ops@example.com",
	}, CertificateOutput())
}

// CreateDeployNode creates a deploy node consuming the certificate of source.
func CreateDeployNode(id, source string) *models.Node {
	return models.NewActionNode(id, "Deploy "+id, models.ActionTypeDeploy, map[string]any{
		"provider":    "ssh",
		"certificate": source + "#certificate",
	})
}

// CreateScheduledStart creates a start node triggered by cron.
func CreateScheduledStart(id, cron string) *models.Node {
	start := models.NewStartNode(id, "Start")
	start.Start.TriggerCron = cron
	start.Start.Trigger = models.TriggerTypeScheduled

	return start
}

// CreateCertificatePipeline builds start -> apply -> deploy -> notify.
func CreateCertificatePipeline() *models.Node {
	root := models.NewStartNode(StartNodeID, "Start")
	apply := CreateApplyNode(ApplyNodeID)
	deploy := CreateDeployNode(DeployNodeID, ApplyNodeID)
	notify := CreateTestNode(WithID(NotifyNodeID), WithName("Notify"))

	root.Next = apply
	apply.Next = deploy
	deploy.Next = notify

	return root
}

// CreateBranchingPipeline builds start -> apply -> branch([deploy-a], [deploy-b]).
func CreateBranchingPipeline() *models.Node {
	root := models.NewStartNode(StartNodeID, "Start")
	apply := CreateApplyNode(ApplyNodeID)
	branch := models.NewBranchNode(BranchNodeID, "Parallel",
		CreateDeployNode(DeployANodeID, ApplyNodeID),
		CreateDeployNode(DeployBNodeID, ApplyNodeID),
	)

	root.Next = apply
	apply.Next = branch

	return root
}

// CreateTestWorkflow creates a test workflow holding the given tree as both
// content and draft.
func CreateTestWorkflow(root *models.Node) *models.Workflow {
	if root == nil {
		root = models.NewStartNode(StartNodeID, "Start")
	}

	now := time.Now().UTC()

	return &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Content:     root,
		Draft:       root,
		Trigger:     models.TriggerTypeManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
