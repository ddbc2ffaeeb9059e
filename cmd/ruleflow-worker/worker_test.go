package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukex/ruleflow/pkg/actions/webhook"
	"github.com/dukex/ruleflow/pkg/cmd"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/models"
	"github.com/dukex/ruleflow/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	path      string
	signature string
	body      string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeRules(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func newTestWorker(t *testing.T, rulesPath string) *Worker {
	t.Helper()

	ctx := context.Background()
	logger := discardLogger()
	opts := cmd.Options{WebhookTimeout: time.Second}
	formatter := cmd.NewFormatter(opts)

	registry, err := cmd.NewActionRegistry(ctx, logger, filepath.Join(t.TempDir(), "plugins"), cmd.NewDependencies(formatter, opts, logger))
	require.NoError(t, err)

	persistence, err := cmd.NewPersistence(rulesPath)
	require.NoError(t, err)

	bus, err := cmd.NewEventBus("gochannel", "", "ruleflow-worker-test", logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = bus.Close() })

	dispatcher := services.NewDispatcher(registry, formatter, nil, logger)

	return NewWorker("worker-test", persistence, dispatcher, bus, logger)
}

func TestWorker_EventToWebhook(t *testing.T) {
	calls := make(chan received, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls <- received{path: r.URL.Path, signature: r.Header.Get(webhook.SignatureHeader), body: string(body)}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rulesPath := writeRules(t, `
rules:
  - id: notify
    enabled: true
    trigger:
      schemas: [product]
    action:
      kind: Webhook
      config:
        url: "`+server.URL+`/hooks/${APP_NAME}"
        shared_secret: s3cret
  - id: disabled
    enabled: false
    action:
      kind: Webhook
      config:
        url: "`+server.URL+`/never"
`)

	worker := newTestWorker(t, rulesPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.eventBus.HandleJobs(worker.handleJob)
	require.NoError(t, worker.eventBus.Subscribe(ctx))

	event := &events.ContentEvent{
		BaseEvent: events.BaseEvent{
			AppID:     events.NamedID{ID: "a1", Name: "shop"},
			Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		Type:     events.ContentCreated,
		ID:       "c1",
		SchemaID: events.NamedID{ID: "s1", Name: "product"},
		Data:     events.ContentData{"title": {"iv": "Chair"}},
	}

	require.NoError(t, worker.handleEvent(ctx, event))

	select {
	case call := <-calls:
		assert.Equal(t, "/hooks/shop", call.path)
		assert.Equal(t, webhook.Sign(call.body, "s3cret"), call.signature)
		assert.Contains(t, call.body, `"type": "ProductCreated"`)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not called")
	}

	select {
	case call := <-calls:
		t.Fatalf("unexpected webhook call to %s", call.path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWorker_HandleEventWithoutMatchingRules(t *testing.T) {
	worker := newTestWorker(t, writeRules(t, `
rules:
  - id: assets
    enabled: true
    trigger:
      kinds: [asset]
    action:
      kind: Webhook
      config:
        url: "https://hooks.example.com"
`))

	event := &events.ContentEvent{
		Type:     events.ContentCreated,
		SchemaID: events.NamedID{Name: "product"},
	}

	require.NoError(t, worker.handleEvent(context.Background(), event))
}

func TestWorker_StartStopsWithContext(t *testing.T) {
	worker := newTestWorker(t, writeRules(t, "rules: []\n"))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- worker.Start(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestValidateRules(t *testing.T) {
	reg, err := cmd.NewRegistry(context.Background(), discardLogger(), filepath.Join(t.TempDir(), "plugins"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		rule      *models.Rule
		expectErr bool
		output    string
	}{
		{
			name: "valid webhook",
			rule: &models.Rule{
				ID:      "r1",
				Enabled: true,
				Action:  models.RuleAction{Kind: webhook.Kind, Config: map[string]any{"url": "https://example.com"}},
			},
			output: "✅ VALID",
		},
		{
			name: "missing url",
			rule: &models.Rule{
				ID:     "r2",
				Action: models.RuleAction{Kind: webhook.Kind, Config: map[string]any{}},
			},
			expectErr: true,
			output:    "❌ INVALID",
		},
		{
			name: "unknown kind",
			rule: &models.Rule{
				ID:     "r3",
				Action: models.RuleAction{Kind: "Slack"},
			},
			expectErr: true,
			output:    "action kind not registered",
		},
		{
			name: "missing id",
			rule: &models.Rule{
				Action: models.RuleAction{Kind: webhook.Kind, Config: map[string]any{"url": "https://example.com"}},
			},
			expectErr: true,
			output:    "❌ INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer

			err := validateRules(&out, reg, []*models.Rule{tt.rule})
			if tt.expectErr {
				require.ErrorIs(t, err, ErrInvalidRules)
			} else {
				require.NoError(t, err)
			}

			assert.True(t, strings.Contains(out.String(), tt.output), out.String())
		})
	}
}
