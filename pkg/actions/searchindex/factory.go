package searchindex

import (
	"context"

	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/rules"
)

// ActionFactory creates search index handlers. Factory overrides the index
// client constructor, e.g. in tests.
type ActionFactory struct {
	Factory func(ctx context.Context, key IndexKey) (Index, error)
}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (f *ActionFactory) Create(_ context.Context, deps protocol.Dependencies) (rules.ActionHandler, error) {
	handler := NewHandler(deps.Formatter, f.Factory, deps.ClientPoolSize, deps.Logger)

	return rules.NewActionHandler[Action, Job](Kind, handler, deps.Validate), nil
}

func (f *ActionFactory) ID() string {
	return Kind
}

func (f *ActionFactory) Name() string {
	return "Populate Algolia Index"
}

func (f *ActionFactory) Description() string {
	return "Adds, updates or removes content entries in an Algolia index."
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"app_id": map[string]any{
				"title":     "Application ID",
				"type":      "string",
				"minLength": 1,
			},
			"api_key": map[string]any{
				"title":     "API Key",
				"type":      "string",
				"minLength": 1,
			},
			"index_name": map[string]any{
				"title":       "Index Name",
				"type":        "string",
				"minLength":   1,
				"description": "Name of the target index. Supports placeholders.",
				"examples":    []string{"products", "${SCHEMA_NAME}-${APP_NAME}"},
			},
			"document": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Optional JSON document expression. The default document is the event payload.",
				"examples": []string{
					`{"title": "${CONTENT_DATA.title.iv | Escape}", "price": ${CONTENT_DATA.price.iv ? 0}}`,
				},
			},
		},
		"required":             []string{"app_id", "api_key", "index_name"},
		"additionalProperties": false,
	}
}
