package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roseviahq/ticketbot/internal/api/http/handlers"
	"github.com/roseviahq/ticketbot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Unlock         *handlers.UnlockHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/unlock", cfg.Unlock.Unlock)

	adminGroup := app.Group("/admin")
	adminGroup.Post("/login", cfg.Admin.Login)

	protected := adminGroup.Group("/tickets", cfg.AuthMiddleware.Handle)
	protected.Post("/:owner_id/unlock", cfg.Admin.Unlock)
	protected.Post("/:owner_id/close", cfg.Admin.Close)
}
