package registry

import (
	"log/slog"
	"testing"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultRegistry() *Registry {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultKinds()

	return registry
}

func TestRegisterDefaultKinds(t *testing.T) {
	registry := newDefaultRegistry()

	ids := make([]string, 0)
	for _, kind := range registry.GetAvailableKinds() {
		ids = append(ids, kind.ID())
	}

	assert.Equal(t, []string{"apply", "condition", "deploy", "execute_failure", "execute_success", "notify", "upload"}, ids)

	message, healthy := registry.HealthCheck()
	assert.True(t, healthy)
	assert.Equal(t, "7 action kinds registered", message)
}

func TestRegistry_HealthCheckEmpty(t *testing.T) {
	_, healthy := NewRegistry(slog.Default()).HealthCheck()
	assert.False(t, healthy)
}

func TestRegistry_Validate(t *testing.T) {
	registry := newDefaultRegistry()

	tests := []struct {
		name    string
		node    *models.Node
		wantErr error
	}{
		{
			name: "valid apply",
			node: testutil.CreateApplyNode("apply"),
		},
		{
			name: "valid deploy",
			node: testutil.CreateDeployNode("deploy", "apply"),
		},
		{
			name: "placeholder condition",
			node: models.NewPlaceholderNode("p"),
		},
		{
			name: "start node",
			node: models.NewStartNode("start", "Start"),
		},
		{
			name: "branch node",
			node: models.NewBranchNode("b", "Branch"),
		},
		{
			name: "execute success marker",
			node: models.NewActionNode("ok", "On success", models.ActionTypeExecuteSuccess, nil),
		},
		{
			name:    "execute failure marker with config",
			node:    models.NewActionNode("ko", "On failure", models.ActionTypeExecuteFailure, map[string]any{"retry": true}),
			wantErr: ErrInvalidActionConfig,
		},
		{
			name:    "unknown type",
			node:    models.NewActionNode("x", "X", "ftp-upload", nil),
			wantErr: ErrActionTypeNotRegistered,
		},
		{
			name:    "missing required field",
			node:    models.NewActionNode("a", "Apply", models.ActionTypeApply, map[string]any{"domains": "example.com"}),
			wantErr: ErrInvalidActionConfig,
		},
		{
			name: "malformed reference",
			node: models.NewActionNode("d", "Deploy", models.ActionTypeDeploy, map[string]any{
				"provider":    "ssh",
				"certificate": "apply",
			}),
			wantErr: ErrInvalidActionConfig,
		},
		{
			name: "enum violation",
			node: testutil.CreateTestNode(testutil.WithConfig(map[string]any{
				"channel": "pager",
				"subject": "s",
				"message": "m",
			})),
			wantErr: ErrInvalidActionConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Validate(tt.node)
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_ValidateTree(t *testing.T) {
	registry := newDefaultRegistry()

	require.NoError(t, registry.ValidateTree(testutil.CreateBranchingPipeline()))

	root := testutil.CreateBranchingPipeline()
	root.Next.Next.Branches[1].Action.Config = map[string]any{}

	assert.ErrorIs(t, registry.ValidateTree(root), ErrInvalidActionConfig)
}

func TestRegistry_Prepare(t *testing.T) {
	registry := newDefaultRegistry()

	t.Run("fills outputs from the kind", func(t *testing.T) {
		node := models.NewActionNode("a", "Apply", models.ActionTypeApply, map[string]any{})

		prepared := registry.Prepare(node)

		require.Len(t, prepared.Output, 1)
		assert.Equal(t, models.OutputTypeCertificate, prepared.Output[0].Type)
		assert.Empty(t, node.Output)
	})

	t.Run("keeps declared outputs", func(t *testing.T) {
		custom := models.Output{Name: "bundle", Type: models.OutputTypeCertificate}
		node := models.NewActionNode("a", "Apply", models.ActionTypeApply, nil, custom)

		assert.Same(t, node, registry.Prepare(node))
	})

	t.Run("kinds without outputs", func(t *testing.T) {
		node := testutil.CreateDeployNode("d", "a")

		assert.Same(t, node, registry.Prepare(node))
	})
}

func TestRegistry_InputsOf(t *testing.T) {
	registry := newDefaultRegistry()

	inputs := registry.InputsOf(testutil.CreateDeployNode("d", "a"))
	require.Len(t, inputs, 1)
	assert.Equal(t, "certificate", inputs[0].Name)

	assert.Empty(t, registry.InputsOf(models.NewStartNode("s", "Start")))
}
