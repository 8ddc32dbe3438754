package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowboard/flowboard/pkg/cmd"
	"github.com/flowboard/flowboard/pkg/log"
	"github.com/flowboard/flowboard/pkg/otelhelper"
	"github.com/flowboard/flowboard/pkg/persistence"
)

const defaultPort = 9080

func main() {
	command := &cli.Command{
		Name:                  "flowboard-api",
		Usage:                 "Serve the hierarchical workflow graph API",
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
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://... or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for editing leases; empty uses the in-process locker",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "purge-schedule",
				Usage:   "Cron schedule for purging soft-deleted workflows",
				Value:   "@hourly",
				Sources: cli.EnvVars("PURGE_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "purge-retention",
				Usage:   "How long deleted workflows are kept before purging",
				Value:   24 * time.Hour,
				Sources: cli.EnvVars("PURGE_RETENTION"),
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
		Action: runAPI,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func runAPI(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Flowboard API")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	var brokers []string
	if raw := command.String("kafka-brokers"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "flowboard-api", brokers, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	locker, err := cmd.NewSessionLocker(ctx, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := locker.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close session locker", "error", err)
		}
	}()

	var tracer trace.Tracer
	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "flowboard-api")
		if err != nil {
			return err
		}
	}

	janitor, err := startJanitor(ctx, logger, persistence, command.String("purge-schedule"), command.Duration("purge-retention"))
	if err != nil {
		return err
	}
	defer janitor.Stop()

	api := NewAPI(logger, persistence, eventBus, locker, tracer)

	if err := api.Start(command.Int("port")); err != nil {
		logger.ErrorContext(ctx, "Failed to start API server", "error", err)
	}

	return nil
}

// startJanitor purges soft-deleted workflows past their retention on a
// cron schedule.
func startJanitor(ctx context.Context, logger *slog.Logger, store persistence.Persistence, schedule string, retention time.Duration) (*cron.Cron, error) {
	janitor := cron.New()

	_, err := janitor.AddFunc(schedule, func() {
		purged, err := store.WorkflowRepository().PurgeDeleted(ctx, time.Now().Add(-retention))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to purge deleted workflows", "error", err)

			return
		}

		if purged > 0 {
			logger.InfoContext(ctx, "Purged deleted workflows", "count", purged)
		}
	})
	if err != nil {
		return nil, err
	}

	janitor.Start()

	return janitor, nil
}
