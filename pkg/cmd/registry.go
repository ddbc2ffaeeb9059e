// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/ruleflow/pkg/actions/searchindex"
	"github.com/dukex/ruleflow/pkg/actions/webhook"
	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/registry"
)

func registerActionPlugins(ctx context.Context, reg *registry.Registry, pluginsPath string) error {
	actionPlugins, err := reg.LoadActionPlugins(ctx, pluginsPath)
	if err != nil {
		return err
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return nil
}

func registerNativeActions(reg *registry.Registry) {
	reg.RegisterAction(webhook.NewActionFactory())
	reg.RegisterAction(searchindex.NewActionFactory())
}

// NewRegistry registers the native actions and the plugins found in
// pluginsPath. Native actions win over plugins with the same id.
func NewRegistry(ctx context.Context, log *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	err := registerActionPlugins(ctx, reg, pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load action plugins: %w", err)
	}

	registerNativeActions(reg)

	return reg, nil
}

// NewActionRegistry is NewRegistry followed by building the handlers from deps.
func NewActionRegistry(ctx context.Context, log *slog.Logger, pluginsPath string, deps protocol.Dependencies) (*registry.Registry, error) {
	reg, err := NewRegistry(ctx, log, pluginsPath)
	if err != nil {
		return nil, err
	}

	err = reg.Build(ctx, deps)
	if err != nil {
		return nil, err
	}

	return reg, nil
}
