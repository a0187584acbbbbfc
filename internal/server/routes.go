package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"komoditas/internal/core/orchestrator"
	"komoditas/internal/health"
)

// Checker is any dependency that can report its health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

type Dependencies struct {
	Manager *orchestrator.Manager
	// Components are probed by /v1/health, keyed by name. Nil entries are skipped.
	Components map[string]Checker
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler()
	for name, c := range d.Components {
		if c != nil {
			healthHandler.Add(name, c.HealthCheck)
		}
	}
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")
	orchestrator.NewHandler(d.Manager).Register(api)

	return healthHandler
}
