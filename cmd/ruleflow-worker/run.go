package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/ruleflow/pkg/cmd"
	"github.com/dukex/ruleflow/pkg/contentstore"
	"github.com/dukex/ruleflow/pkg/log"
	"github.com/dukex/ruleflow/pkg/otelhelper"
	"github.com/dukex/ruleflow/pkg/services"
	"github.com/dukex/ruleflow/pkg/sources/redisqueue"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start a worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "rules-path",
				Usage:    "Rule file or directory of rule files",
				Required: true,
				Sources:  cli.EnvVars("RULES_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL to read enriched events from. Empty disables the queue source",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis list holding enriched events",
				Value:   redisqueue.DefaultQueue,
				Sources: cli.EnvVars("REDIS_QUEUE"),
			},
			&cli.BoolFlag{
				Name:    "track-content",
				Usage:   "Keep content snapshots in Redis so placeholders can follow reference fields",
				Value:   true,
				Sources: cli.EnvVars("TRACK_CONTENT"),
			},
			&cli.DurationFlag{
				Name:    "content-ttl",
				Usage:   "Lifetime of content snapshots (0 keeps them forever)",
				Value:   contentstore.DefaultTTL,
				Sources: cli.EnvVars("CONTENT_TTL"),
			},
			&cli.BoolFlag{
				Name:    "consume-events",
				Usage:   "Create jobs for events published on the bus",
				Value:   true,
				Sources: cli.EnvVars("CONSUME_EVENTS"),
			},
			&cli.BoolFlag{
				Name:    "execute-jobs",
				Usage:   "Execute jobs published on the bus",
				Value:   true,
				Sources: cli.EnvVars("EXECUTE_JOBS"),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Base URL used for CONTENT_URL and ASSET_CONTENT_URL",
				Sources: cli.EnvVars("BASE_URL"),
			},
			&cli.DurationFlag{
				Name:    "script-timeout",
				Usage:   "Maximum run time of a single script",
				Value:   500 * time.Millisecond,
				Sources: cli.EnvVars("SCRIPT_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "webhook-timeout",
				Usage:   "Timeout of a single webhook request",
				Value:   2 * time.Second,
				Sources: cli.EnvVars("WEBHOOK_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "client-pool-size",
				Usage:   "Maximum number of cached search index clients (0 for unbounded)",
				Value:   100,
				Sources: cli.EnvVars("CLIENT_POOL_SIZE"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP (configured with the OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("ruleflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Ruleflow Worker")

			tracer := otelhelper.NoopTracer()

			if command.Bool("tracing") {
				var (
					shutdown func(context.Context) error
					err      error
				)

				tracer, shutdown, err = otelhelper.NewTracer(ctx, "ruleflow-worker")
				if err != nil {
					return err
				}

				defer func() {
					err := shutdown(context.WithoutCancel(ctx))
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			worker, cleanup, err := setupWorker(ctx, command, workerID, tracer, logger)
			defer cleanup()

			if err != nil {
				return err
			}

			return worker.Start(ctx)
		},
	}
}

func setupWorker(ctx context.Context, command *cli.Command, workerID string, tracer trace.Tracer, logger *slog.Logger) (*Worker, func(), error) {
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	workerOpts := []WorkerOption{
		WithBusEvents(command.Bool("consume-events")),
		WithJobExecution(command.Bool("execute-jobs")),
	}

	opts := cmd.Options{
		BaseURL:        command.String("base-url"),
		ScriptTimeout:  command.Duration("script-timeout"),
		WebhookTimeout: command.Duration("webhook-timeout"),
		ClientPoolSize: command.Int("client-pool-size"),
	}

	if redisURL := command.String("redis-url"); redisURL != "" {
		client, err := redisqueue.NewClient(ctx, redisURL)
		if err != nil {
			return nil, cleanup, err
		}

		closers = append(closers, func() {
			err := client.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
			}
		})

		source, err := redisqueue.NewSource(client, command.String("redis-queue"), logger)
		if err != nil {
			return nil, cleanup, err
		}

		workerOpts = append(workerOpts, WithQueueSource(source))

		if command.Bool("track-content") {
			store := contentstore.NewRedisStore(client, contentstore.DefaultPrefix, command.Duration("content-ttl"))

			workerOpts = append(workerOpts, WithContentStore(store))
			opts.Contents = store
		}
	}

	formatter := cmd.NewFormatter(opts)

	registry, err := cmd.NewActionRegistry(ctx, logger, command.String("plugins-path"), cmd.NewDependencies(formatter, opts, logger))
	if err != nil {
		return nil, cleanup, err
	}

	persistence, err := cmd.NewPersistence(command.String("rules-path"))
	if err != nil {
		return nil, cleanup, err
	}

	closers = append(closers, func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	})

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "ruleflow-worker", logger)
	if err != nil {
		return nil, cleanup, err
	}

	closers = append(closers, func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	})

	dispatcher := services.NewDispatcher(registry, formatter, tracer, logger)

	return NewWorker(workerID, persistence, dispatcher, eventBus, logger, workerOpts...), cleanup, nil
}
