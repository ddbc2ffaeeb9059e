// Package registry keeps the action kinds known to the pipeline.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrActionNotRegistered = errors.New("action kind not registered")
	ErrInvalidConfig       = errors.New("invalid action configuration")
	ErrInvalidPlugin       = errors.New("invalid plugin")
)

// ActionInfo describes a registered action kind.
type ActionInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

type Registry struct {
	logger *slog.Logger

	mu              sync.RWMutex
	actionFactories map[string]protocol.ActionFactory
	handlers        map[string]rules.ActionHandler
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
		handlers:        make(map[string]rules.ActionHandler),
	}
}

func (r *Registry) LoadActionPlugins(ctx context.Context, pluginsPath string) ([]protocol.ActionFactory, error) {
	return loadPlugin[protocol.ActionFactory](ctx, r.logger, pluginsPath, "Action")
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actionFactories[actionFactory.ID()] = actionFactory
}

// Build creates one handler per registered factory. Handlers are shared by
// every rule of their kind.
func (r *Registry) Build(ctx context.Context, deps protocol.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, factory := range r.actionFactories {
		handler, err := factory.Create(ctx, deps)
		if err != nil {
			return fmt.Errorf("failed to create %s handler: %w", id, err)
		}

		r.handlers[id] = handler
	}

	r.logger.InfoContext(ctx, "Action handlers ready", "kinds", len(r.handlers))

	return nil
}

func (r *Registry) Handler(kind string) (rules.ActionHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotRegistered, kind)
	}

	return handler, nil
}

// Validate checks config against the JSON schema of the action kind.
func (r *Registry) Validate(kind string, config json.RawMessage) error {
	r.mu.RLock()
	factory, ok := r.actionFactories[kind]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrActionNotRegistered, kind)
	}

	schemaLoader := gojsonschema.NewGoLoader(factory.Schema())
	dataLoader := gojsonschema.NewBytesLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// Actions lists the registered action kinds ordered by id.
func (r *Registry) Actions() []ActionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]ActionInfo, 0, len(r.actionFactories))
	for _, factory := range r.actionFactories {
		actions = append(actions, ActionInfo{
			ID:          factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	slices.SortFunc(actions, func(a, b ActionInfo) int {
		return strings.Compare(a.ID, b.ID)
	})

	return actions
}

func loadPlugin[T any](ctx context.Context, logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"

	if _, err := os.Stat(rootPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.InfoContext(ctx, "Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPlugin, p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPlugin, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not export a %s", ErrInvalidPlugin, p, symbolName)
		}

		pluginList = append(pluginList, castV)

		l.InfoContext(ctx, "Loaded action plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
