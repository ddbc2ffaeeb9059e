package webhook

import (
	"context"

	"github.com/dukex/ruleflow/pkg/protocol"
	"github.com/dukex/ruleflow/pkg/rules"
)

// ActionFactory creates webhook handlers.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (f *ActionFactory) Create(_ context.Context, deps protocol.Dependencies) (rules.ActionHandler, error) {
	handler := NewHandler(deps.Formatter, deps.HTTPClient, deps.WebhookTimeout, deps.Logger)

	return rules.NewActionHandler[Action, Job](Kind, handler, deps.Validate), nil
}

func (f *ActionFactory) ID() string {
	return Kind
}

func (f *ActionFactory) Name() string {
	return "Webhook"
}

func (f *ActionFactory) Description() string {
	return "Sends a signed JSON representation of the event to an HTTP endpoint."
}

// Schema returns the JSON schema for configuring this action.
func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"title":       "URL",
				"type":        "string",
				"minLength":   1,
				"description": "The endpoint to post to. Supports placeholders.",
				"examples": []string{
					"https://hooks.example.com/events",
					"https://hooks.example.com/${APP_NAME}/${SCHEMA_NAME}",
				},
			},
			"shared_secret": map[string]any{
				"type":        "string",
				"description": "Secret appended to the body before hashing the X-Signature header.",
			},
			"payload": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Optional body expression. The default body is the event envelope.",
				"examples": []string{
					`{"id": "${EVENT_ID}", "title": "${CONTENT_DATA.title.iv | Escape}"}`,
					`Script(JSON.stringify({ id: event.id }))`,
				},
			},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}
