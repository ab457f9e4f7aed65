package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/certflow/pkg/cmd"
	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/persistence/file"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()

	eventBus, err := cmd.NewEventBus("gochannel", nil, slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = eventBus.Close()
	})

	return NewAPI(
		slog.Default(),
		file.NewPersistence(t.TempDir()),
		cmd.NewRegistry(slog.Default()),
		eventBus,
		noop.NewTracerProvider().Tracer("test"),
	)
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := newTestAPI(t).App()

	resp, body := doRequest(t, app, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Certflow API", string(body))
}

func TestAPI_Probes(t *testing.T) {
	app := newTestAPI(t).App()

	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			resp, body := doRequest(t, app, http.MethodGet, path, "")

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "OK", string(body))
		})
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	app := newTestAPI(t).App()

	resp, body := doRequest(t, app, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Certflow API is healthy")
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	app := newTestAPI(t).App()

	resp, body := doRequest(t, app, http.MethodGet, "/workflows", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var list struct {
		Workflows  []models.Workflow `json:"workflows"`
		TotalCount int               `json:"total_count"`
	}

	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list.Workflows)
	assert.Zero(t, list.TotalCount)
}

func TestAPI_CreateAndFetch(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.WatchEvents(t.Context()))

	app := api.App()

	resp, body := doRequest(t, app, http.MethodPost, "/workflows", `{"name":"Renew example.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.NodeKindStart, created.Draft.Kind)

	resp, body = doRequest(t, app, http.MethodGet, "/workflows/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "Renew example.com", fetched.Name)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := newTestAPI(t).App()

	req := httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
