// Package redisqueue consumes enriched events from a Redis list.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultQueue = "ruleflow:events"

	popTimeout   = 1 * time.Second
	retryBackoff = 1 * time.Second
	pingTimeout  = 5 * time.Second
)

var (
	ErrQueueRequired = errors.New("queue name is required")
	ErrNotStarted    = errors.New("source not started")
)

// Handler receives decoded events in queue order.
type Handler func(ctx context.Context, event events.EnrichedEvent) error

// Source pops events from the head of a list. Producers push with RPUSH,
// e.g. through Push. Messages that cannot be decoded or handled are moved
// to the "<queue>:dead" list.
type Source struct {
	client redis.UniversalClient
	queue  string
	logger *slog.Logger

	handler  Handler
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSource(client redis.UniversalClient, queue string, logger *slog.Logger) (*Source, error) {
	if queue == "" {
		return nil, ErrQueueRequired
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		client: client,
		queue:  queue,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "redis_queue_source",
			"queue", queue,
		),
	}, nil
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (s *Source) DeadLetterQueue() string {
	return s.queue + ":dead"
}

// Push appends event to the queue.
func (s *Source) Push(ctx context.Context, event events.EnrichedEvent) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}

	return s.client.RPush(ctx, s.queue, payload).Err()
}

func (s *Source) Start(ctx context.Context, handler Handler) error {
	s.logger.InfoContext(ctx, "Starting queue source")
	s.handler = handler

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) Stop(ctx context.Context) error {
	if s.handler == nil {
		return ErrNotStarted
	}

	s.stopOnce.Do(func() {
		s.logger.InfoContext(ctx, "Stopping queue source")
		close(s.stopCh)
	})
	s.wg.Wait()

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)

				select {
				case <-s.stopCh:
				case <-ctx.Done():
				case <-time.After(retryBackoff):
				}
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, popTimeout, s.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	err = s.handleMessage(ctx, result[1])
	if err != nil {
		s.logger.WarnContext(ctx, "Moving message to dead letter queue", "error", err)

		return s.client.RPush(ctx, s.DeadLetterQueue(), result[1]).Err()
	}

	return nil
}

func (s *Source) handleMessage(ctx context.Context, message string) error {
	event, err := events.Unmarshal([]byte(message))
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Received event", "event", event.EventName())

	return s.handler(ctx, event)
}
