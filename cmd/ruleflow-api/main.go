package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/ruleflow/pkg/cmd"
	"github.com/dukex/ruleflow/pkg/eventbus"
	"github.com/dukex/ruleflow/pkg/log"
	"github.com/dukex/ruleflow/pkg/otelhelper"
	"github.com/dukex/ruleflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "ruleflow-api",
		Usage:                 "Preview, create and execute rule jobs over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "rules-path",
				Usage:    "Rule file or directory of rule files",
				Required: true,
				Sources:  cli.EnvVars("RULES_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type used to queue dispatched jobs (kafka, gochannel). Empty disables queueing",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Base URL used for CONTENT_URL and ASSET_CONTENT_URL",
				Sources: cli.EnvVars("BASE_URL"),
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
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Ruleflow API")

	opts := cmd.Options{
		BaseURL:        command.String("base-url"),
		WebhookTimeout: command.Duration("webhook-timeout"),
		ClientPoolSize: command.Int("client-pool-size"),
	}

	formatter := cmd.NewFormatter(opts)

	registry, err := cmd.NewActionRegistry(ctx, logger, command.String("plugins-path"), cmd.NewDependencies(formatter, opts, logger))
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(command.String("rules-path"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	var publisher eventbus.EventPublisher

	if provider := command.String("event-bus"); provider != "" {
		eventBus, err := cmd.NewEventBus(provider, command.String("kafka-brokers"), "ruleflow-api", logger)
		if err != nil {
			return err
		}

		defer func() {
			err := eventBus.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()

		publisher = eventBus
	}

	dispatcher := services.NewDispatcher(registry, formatter, otelhelper.NoopTracer(), logger)

	api := NewAPI(logger, persistence, registry, dispatcher, formatter, publisher)

	return api.Start(command.Int("port"))
}
