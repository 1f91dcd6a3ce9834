package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-watchdog/internal/api/http/handlers"
	"github.com/spec-kit/ticket-watchdog/internal/ws"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Hub     *ws.Hub
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/tickets", cfg.Tickets.Ingest)
	app.Get("/tickets/:id", cfg.Tickets.Get)
	app.Get("/dashboard", cfg.Tickets.Dashboard)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/alerts", cfg.Hub.Handler())
}
