package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/rules"
)

var ErrNoHandlers = errors.New("no handlers registered")

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	logger        *slog.Logger
	eventHandlers []EventHandler
	jobHandlers   []JobHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	if logger == nil {
		logger = slog.Default()
	}

	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "event_bus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) PublishEvent(ctx context.Context, event events.EnrichedEvent) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("evt-"+eb.GenerateID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(KeyMetadataKey, event.Base().AppID.ID)
	msg.Metadata.Set(TypeMetadataKey, event.EventName())

	return eb.publisher.Publish(EventsTopic, msg)
}

func (eb *WatermillEventBus) PublishJob(ctx context.Context, job *rules.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := message.NewMessage("job-"+job.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(KeyMetadataKey, job.RuleID)
	msg.Metadata.Set(TypeMetadataKey, job.ActionKind)

	return eb.publisher.Publish(JobsTopic, msg)
}

func (eb *WatermillEventBus) HandleEvents(handler EventHandler) {
	eb.eventHandlers = append(eb.eventHandlers, handler)
}

func (eb *WatermillEventBus) HandleJobs(handler JobHandler) {
	eb.jobHandlers = append(eb.jobHandlers, handler)
}

// Subscribe starts consuming the topics that have handlers. Messages whose
// handler fails are nacked for redelivery.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	if len(eb.eventHandlers) == 0 && len(eb.jobHandlers) == 0 {
		return ErrNoHandlers
	}

	if len(eb.eventHandlers) > 0 {
		err := eb.consume(ctx, EventsTopic, eb.dispatchEvent)
		if err != nil {
			return err
		}
	}

	if len(eb.jobHandlers) > 0 {
		err := eb.consume(ctx, JobsTopic, eb.dispatchJob)
		if err != nil {
			return err
		}
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, topic string, dispatch func(ctx context.Context, payload []byte) error) error {
	messages, err := eb.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	eb.logger.InfoContext(ctx, "Subscribed", "topic", topic)

	go func() {
		for msg := range messages {
			err := dispatch(ctx, msg.Payload)
			if err != nil {
				eb.logger.ErrorContext(ctx, "Failed to handle message", "topic", topic, "message_id", msg.UUID, "error", err)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatchEvent(ctx context.Context, payload []byte) error {
	event, err := events.Unmarshal(payload)
	if err != nil {
		return err
	}

	for _, handler := range eb.eventHandlers {
		err = handler(ctx, event)
		if err != nil {
			return err
		}
	}

	return nil
}

func (eb *WatermillEventBus) dispatchJob(ctx context.Context, payload []byte) error {
	var job rules.Job

	err := json.Unmarshal(payload, &job)
	if err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	for _, handler := range eb.jobHandlers {
		err = handler(ctx, &job)
		if err != nil {
			return err
		}
	}

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
