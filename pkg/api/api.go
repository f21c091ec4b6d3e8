// Package api exposes the runner over REST: submit runs, inspect their
// state, cancel and resume them.
package api

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/devicelab-dev/signup-runner/pkg/engine"
)

// API serves the run-management endpoints on top of a run manager.
type API struct {
	manager  *engine.Manager
	validate *validator.Validate
}

// New creates the API surface.
func New(manager *engine.Manager) *API {
	return &API{
		manager:  manager,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// App builds the fiber application with all routes registered.
func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("signup-runner API")
	})

	r := app.Group("/runs")
	r.Post("/", a.startRun)
	r.Get("/", a.listRuns)
	r.Get("/:id", a.getRun)
	r.Post("/:id/cancel", a.cancelRun)
	r.Post("/:id/resume", a.resumeRun)

	return app
}

// Start builds the app and listens on the given port.
func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
