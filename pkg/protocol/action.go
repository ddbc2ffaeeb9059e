// Package protocol defines the contract between the registry and action kinds.
package protocol

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/go-playground/validator/v10"
)

// Formatter renders rule expressions against enriched events.
type Formatter interface {
	Format(ctx context.Context, expression string, event events.EnrichedEvent) (string, error)
	ToPayload(event events.EnrichedEvent) (map[string]any, error)
	ToEnvelope(event events.EnrichedEvent) (string, error)
}

// Dependencies are the shared collaborators handed to every action factory.
type Dependencies struct {
	Formatter      Formatter
	HTTPClient     *http.Client
	Validate       *validator.Validate
	Logger         *slog.Logger
	WebhookTimeout time.Duration
	ClientPoolSize int
}

// ActionFactory describes an action kind and creates its handler.
type ActionFactory interface {
	ID() string
	Name() string
	Description() string
	Schema() map[string]any
	Create(ctx context.Context, deps Dependencies) (rules.ActionHandler, error)
}
