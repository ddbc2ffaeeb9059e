package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/ruleflow/pkg/contentstore"
	"github.com/dukex/ruleflow/pkg/eventbus"
	"github.com/dukex/ruleflow/pkg/events"
	"github.com/dukex/ruleflow/pkg/persistence"
	"github.com/dukex/ruleflow/pkg/rules"
	"github.com/dukex/ruleflow/pkg/services"
	"github.com/dukex/ruleflow/pkg/sources/redisqueue"
)

// Worker turns incoming events into jobs and executes the jobs it receives
// from the bus. Either side can be disabled.
type Worker struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	dispatcher  *services.Dispatcher
	eventBus    eventbus.EventBus
	source      *redisqueue.Source
	contents    *contentstore.Store

	consumeBusEvents bool
	executeJobs      bool
}

type WorkerOption func(*Worker)

// WithQueueSource reads events from a Redis list in addition to the bus.
func WithQueueSource(source *redisqueue.Source) WorkerOption {
	return func(w *Worker) {
		w.source = source
	}
}

// WithContentStore records the data of every content event before its
// jobs are created.
func WithContentStore(store *contentstore.Store) WorkerOption {
	return func(w *Worker) {
		w.contents = store
	}
}

// WithBusEvents consumes events published on the bus.
func WithBusEvents(enabled bool) WorkerOption {
	return func(w *Worker) {
		w.consumeBusEvents = enabled
	}
}

// WithJobExecution executes the jobs published on the bus.
func WithJobExecution(enabled bool) WorkerOption {
	return func(w *Worker) {
		w.executeJobs = enabled
	}
}

func NewWorker(
	id string,
	persistence persistence.Persistence,
	dispatcher *services.Dispatcher,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	opts ...WorkerOption,
) *Worker {
	w := &Worker{
		id:          id,
		logger:      logger,
		persistence: persistence,
		dispatcher:  dispatcher,
		eventBus:    eventBus,
		executeJobs: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start subscribes the worker and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.consumeBusEvents {
		w.eventBus.HandleEvents(w.handleEvent)
	}

	if w.executeJobs {
		w.eventBus.HandleJobs(w.handleJob)
	}

	if w.consumeBusEvents || w.executeJobs {
		err := w.eventBus.Subscribe(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

			return err
		}
	}

	if w.source != nil {
		err := w.source.Start(ctx, w.handleEvent)
		if err != nil {
			return err
		}

		defer func() {
			err := w.source.Stop(context.WithoutCancel(ctx))
			if err != nil {
				w.logger.ErrorContext(ctx, "Failed to stop queue source", "error", err)
			}
		}()
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// handleEvent creates the jobs of every triggered rule and publishes them.
// Rules that fail to create a job are logged and skipped so that a
// redelivered event does not duplicate the jobs of the other rules.
func (w *Worker) handleEvent(ctx context.Context, event events.EnrichedEvent) error {
	logger := w.logger.With("event", event.EventName(), "app_id", event.Base().AppID.ID)

	if w.contents != nil {
		err := w.contents.Observe(ctx, event)
		if err != nil {
			logger.WarnContext(ctx, "Failed to record content", "error", err)
		}
	}

	ruleSet, err := w.persistence.Rules(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load rules", "error", err)

		return err
	}

	jobs, err := w.dispatcher.CreateJobs(ctx, event, ruleSet)
	if err != nil {
		logger.WarnContext(ctx, "Some rules failed to create jobs", "error", err)
	}

	for _, job := range jobs {
		err := w.eventBus.PublishJob(ctx, job)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to publish job", "job_id", job.ID, "error", err)

			return err
		}
	}

	logger.InfoContext(ctx, "Event processed", "jobs", len(jobs))

	return nil
}

func (w *Worker) handleJob(ctx context.Context, job *rules.Job) error {
	result := w.dispatcher.ExecuteJob(ctx, job)

	w.logger.DebugContext(ctx, "Job handled",
		"job_id", job.ID,
		"rule_id", job.RuleID,
		"status", result.Status,
	)

	return nil
}
