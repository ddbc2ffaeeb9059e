package registry_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/ruleflow/pkg/actions/searchindex"
	"github.com/dukex/ruleflow/pkg/actions/webhook"
	"github.com/dukex/ruleflow/pkg/formatter"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	reg.RegisterAction(webhook.NewActionFactory())
	reg.RegisterAction(searchindex.NewActionFactory())

	err := reg.Build(context.Background(), protocol.Dependencies{
		Formatter: formatter.New(nil, nil),
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
	})
	require.NoError(t, err)

	return reg
}

func TestRegistry_Handler(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	handler, err := reg.Handler(webhook.Kind)
	require.NoError(t, err)
	assert.Equal(t, webhook.Kind, handler.Kind())

	_, err = reg.Handler("Email")
	require.ErrorIs(t, err, registry.ErrActionNotRegistered)
}

func TestRegistry_Validate(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	tests := []struct {
		name    string
		kind    string
		config  string
		wantErr error
	}{
		{"valid webhook", webhook.Kind, `{"url":"https://example.com","shared_secret":"s"}`, nil},
		{"missing url", webhook.Kind, `{"shared_secret":"s"}`, registry.ErrInvalidConfig},
		{"unknown property", webhook.Kind, `{"url":"https://example.com","method":"GET"}`, registry.ErrInvalidConfig},
		{"valid index", searchindex.Kind, `{"app_id":"A","api_key":"K","index_name":"products"}`, nil},
		{"empty index name", searchindex.Kind, `{"app_id":"A","api_key":"K","index_name":""}`, registry.ErrInvalidConfig},
		{"malformed json", webhook.Kind, `{"url":`, registry.ErrInvalidConfig},
		{"unknown kind", "Email", `{}`, registry.ErrActionNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := reg.Validate(tt.kind, json.RawMessage(tt.config))
			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_Actions(t *testing.T) {
	t.Parallel()

	actions := newRegistry(t).Actions()

	require.Len(t, actions, 2)
	assert.Equal(t, searchindex.Kind, actions[0].ID)
	assert.Equal(t, webhook.Kind, actions[1].ID)
	assert.NotEmpty(t, actions[1].Schema)
}

func TestRegistry_LoadActionPlugins_MissingDirectory(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry(slog.Default())

	plugins, err := reg.LoadActionPlugins(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, plugins)
}
