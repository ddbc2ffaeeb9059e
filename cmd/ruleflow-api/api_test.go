package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/ruleflow/pkg/cmd"
	"github.com/dukex/ruleflow/pkg/eventbus"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/dukex/ruleflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
rules:
  - id: notify
    name: Notify partner
    enabled: true
    trigger:
      schemas: [product]
      types: [Created]
    action:
      kind: Webhook
      config:
        url: "https://hooks.example.com/${APP_NAME}"
`

func setupTestApp(t *testing.T, publisher eventbus.EventPublisher) *fiber.App {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRules), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := cmd.Options{}
	formatter := cmd.NewFormatter(opts)

	registry, err := cmd.NewActionRegistry(context.Background(), logger, filepath.Join(t.TempDir(), "plugins"), cmd.NewDependencies(formatter, opts, logger))
	require.NoError(t, err)

	persistence, err := cmd.NewPersistence(path)
	require.NoError(t, err)

	dispatcher := services.NewDispatcher(registry, formatter, nil, logger)

	return NewAPI(logger, persistence, registry, dispatcher, formatter, publisher).App()
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ruleflow API", string(readBody(t, resp)))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(readBody(t, resp)))
}

func TestAPI_GetRules(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rules", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(readBody(t, resp), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "notify", got[0]["id"])
}

func TestAPI_DispatchEventQueuesJobs(t *testing.T) {
	bus, err := cmd.NewEventBus("gochannel", "", "ruleflow-api-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *rules.Job, 1)
	bus.HandleJobs(func(_ context.Context, job *rules.Job) error {
		received <- job

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	app := setupTestApp(t, bus)

	payload, err := events.Marshal(&events.ContentEvent{
		BaseEvent: events.BaseEvent{
			AppID:     events.NamedID{ID: "a1", Name: "shop"},
			Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		Type:     events.ContentCreated,
		ID:       "c1",
		SchemaID: events.NamedID{ID: "s1", Name: "product"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	readBody(t, resp)

	select {
	case job := <-received:
		assert.Equal(t, "notify", job.RuleID)
		assert.Equal(t, "Send event to webhook https://hooks.example.com/shop", job.Description)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not published")
	}
}
