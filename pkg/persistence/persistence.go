// Package persistence provides the storage abstraction for rule definitions.
package persistence

import (
	"context"

	"github.com/dukex/ruleflow/pkg/models"
)

type Persistence interface {
	Rules(ctx context.Context) ([]*models.Rule, error)
	RuleByID(ctx context.Context, id string) (*models.Rule, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
