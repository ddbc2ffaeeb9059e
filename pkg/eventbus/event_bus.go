// Package eventbus carries enriched events and rule jobs between processes.
package eventbus

import (
	"context"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/rules"
)

const (
	EventsTopic = "ruleflow.events"
	JobsTopic   = "ruleflow.jobs"

	KeyMetadataKey  = "key"
	TypeMetadataKey = "type"
)

type (
	EventHandler func(ctx context.Context, event events.EnrichedEvent) error
	JobHandler   func(ctx context.Context, job *rules.Job) error
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, event events.EnrichedEvent) error
	PublishJob(ctx context.Context, job *rules.Job) error
}

type EventSubscriber interface {
	HandleEvents(handler EventHandler)
	HandleJobs(handler JobHandler)
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
