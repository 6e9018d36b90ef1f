package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Tickets       *handlers.TicketsHandler
	SLA           *handlers.SLAHandler
	Users         *handlers.UsersHandler
	Notifications *handlers.NotificationsHandler
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	tickets := app.Group("/tickets")
	// static sla routes go before /:id
	tickets.Get("/sla/breached", cfg.SLA.ListBreached)
	tickets.Get("/sla/breached/count", cfg.SLA.CountBreached)
	tickets.Post("/sla/monitor", cfg.SLA.Monitor)

	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Put("/:id/assign/:userId", cfg.Tickets.AssignTicket)
	tickets.Put("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Get("/:id/sla-status", cfg.SLA.Status)
	tickets.Get("/:id/sla-history", cfg.SLA.History)

	users := app.Group("/users")
	users.Post("", cfg.Users.Create)
	users.Get("/:userId", cfg.Users.Get)
	users.Get("/:userId/notifications", cfg.Notifications.List)
	users.Get("/:userId/notifications/new", cfg.Notifications.Unread)
	users.Get("/:userId/notifications/since/:date", cfg.Notifications.Since)
	users.Put("/:userId/notifications/read-all", cfg.Notifications.MarkAllRead)

	app.Put("/notifications/:id/read", cfg.Notifications.MarkRead)
}
