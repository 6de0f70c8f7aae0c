package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sync/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sync/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Sync           *handlers.SyncHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.Token)

	syncGroup := app.Group("/sync", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	syncGroup.Post("/runs", cfg.Sync.StartRun)
	syncGroup.Get("/runs", cfg.Sync.ListRuns)
	syncGroup.Get("/runs/:id", cfg.Sync.GetRun)
	syncGroup.Post("/tickets/:id", cfg.Sync.SyncTicket)
	syncGroup.Get("/metrics", cfg.Sync.Metrics)
}
