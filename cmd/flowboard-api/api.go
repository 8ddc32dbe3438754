// Package main provides the Flowboard API server implementation.
package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowboard/flowboard/pkg/eventbus"
	"github.com/flowboard/flowboard/pkg/persistence"
	"github.com/flowboard/flowboard/pkg/services"
	"github.com/flowboard/flowboard/pkg/sessionlock"
	"github.com/flowboard/flowboard/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	locker      sessionlock.Locker
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	locker sessionlock.Locker,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		locker:      locker,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	workflowService := services.NewWorkflow(a.logger, a.persistence, a.eventBus)

	graphService, err := services.NewGraph(a.logger, a.persistence, a.eventBus)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph service: %w", err)
	}

	templateService := services.NewTemplate(a.logger, a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(workflowService, graphService, templateService, a.validate, a.locker)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	if a.tracer != nil {
		app.Use(web.TraceMiddleware(a.tracer))
	}

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowboard API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/export", handlers.ExportWorkflow)

	// Graph endpoints:
	w.Get("/:id/nodes", handlers.GetNodes)
	w.Post("/:id/nodes", handlers.CreateNode)
	w.Patch("/:id/nodes/:nodeId", handlers.UpdateNode)
	w.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)
	w.Get("/:id/edges", handlers.GetEdges)
	w.Post("/:id/edges", handlers.CreateEdge)
	w.Delete("/:id/edges/:edgeId", handlers.DeleteEdge)
	w.Post("/:id/batch", handlers.CreateBatch)
	w.Post("/:id/batch-save", handlers.BatchSave)
	w.Post("/:id/expand", handlers.ExpandTemplate)

	// Editing lease endpoints:
	w.Get("/:id/lease", handlers.GetLease)
	w.Post("/:id/lease", handlers.AcquireLease)
	w.Put("/:id/lease", handlers.RenewLease)
	w.Delete("/:id/lease", handlers.ReleaseLease)

	tpl := app.Group("/action-templates")
	tpl.Get("/", handlers.GetTemplates)
	tpl.Get("/:id", handlers.GetTemplate)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
