//go:build integration

package web_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence/postgresql"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/dukex/certflow/pkg/services"
	"github.com/dukex/certflow/pkg/testutil"
	"github.com/dukex/certflow/pkg/web"
	"github.com/dukex/certflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestDB(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_certflow",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_certflow?sslmode=disable", host, port.Port())
}

func setupIntegrationApp(t *testing.T, dbURL string) *fiber.App {
	t.Helper()

	store, err := postgresql.NewPersistence(context.Background(), slog.Default(), dbURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultKinds()

	tracer := noop.NewTracerProvider().Tracer("test")

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, nil, slog.Default()),
		services.NewDesigner(store, reg, nil, tracer, slog.Default()),
		services.NewPublishing(store, reg, nil, tracer, slog.Default()),
		workflow.NewValidator(),
		reg,
	)

	app := fiber.New()
	handlers.Routes(app)

	return app
}

func TestWorkflowLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	app := setupIntegrationApp(t, setupTestDB(t))

	created := createWorkflow(t, app)
	base := "/workflows/" + created.ID

	resp, body := doRequest(t, app, http.MethodPost, base+"/nodes", web.AddNodeRequest{
		PreviousNodeID: created.Draft.ID,
		Node:           testutil.CreateApplyNode(testutil.ApplyNodeID),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doRequest(t, app, http.MethodPost, base+"/nodes", web.AddNodeRequest{
		PreviousNodeID: testutil.ApplyNodeID,
		Node:           testutil.CreateDeployNode(testutil.DeployNodeID, testutil.ApplyNodeID),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doRequest(t, app, http.MethodPut, base+"/nodes/"+created.Draft.ID, web.UpdateNodeRequest{
		Node: testutil.CreateScheduledStart(created.Draft.ID, "0 4 * * *"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doRequest(t, app, http.MethodPost, base+"/release", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doRequest(t, app, http.MethodPost, base+"/switch-enable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doRequest(t, app, http.MethodGet, "/workflows?enabled=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), created.ID)

	resp, body = doRequest(t, app, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored := decodeWorkflow(t, body)
	assert.True(t, stored.Enabled)
	assert.False(t, stored.HasDraft)
	assert.Equal(t, models.TriggerTypeScheduled, stored.Trigger)
	assert.Equal(t, "0 4 * * *", stored.TriggerCron)

	count, err := workflow.Count(stored.Content)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	resp, _ = doRequest(t, app, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
