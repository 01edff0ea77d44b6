package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/api/http/handlers"
	"github.com/spec-kit/gate-checkin/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Events         *handlers.EventsHandler
	Tickets        *handlers.TicketsHandler
	Scanner        *handlers.ScannerHandler
	Analytics      *handlers.AnalyticsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Gate           *auth.Gate
}

// RegisterRoutes wires HTTP routes. Services re-check every capability; the
// route guards only reject early.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("", cfg.AuthMiddleware.Handle)
	require := func(capability auth.Capability) fiber.Handler {
		return auth.RequireCapability(cfg.Gate, capability)
	}

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)

	api.Get("/events", require(auth.CapViewEvents), cfg.Events.ListEvents)
	api.Post("/events", require(auth.CapManageEvents), cfg.Events.CreateEvent)
	api.Get("/announcements", require(auth.CapReadAnnouncements), cfg.Events.ListAnnouncements)
	api.Post("/announcements", require(auth.CapPostAnnouncements), cfg.Events.PostAnnouncement)

	api.Post("/registrations", require(auth.CapSelfRegister), cfg.Tickets.Register)
	tickets := api.Group("/tickets", auth.RequireAuthenticated())
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/qr", cfg.Tickets.TicketQR)

	scan := api.Group("/scanner", require(auth.CapOperateScanner))
	scan.Post("/session", cfg.Scanner.StartSession)
	scan.Delete("/session", cfg.Scanner.StopSession)
	scan.Post("/codes", cfg.Scanner.SubmitCode)
	scan.Post("/frames", cfg.Scanner.SubmitFrame)

	analytics := api.Group("/analytics", require(auth.CapViewAnalytics))
	analytics.Get("/summary", cfg.Analytics.Summary)
	analytics.Get("/checkins", cfg.Analytics.Checkins)

	admin := api.Group("/admin", require(auth.CapManageData))
	admin.Get("/snapshot", cfg.Admin.ExportSnapshot)
	admin.Put("/snapshot", cfg.Admin.ImportSnapshot)
	admin.Get("/registrations.csv", cfg.Admin.RegistrationsCSV)
	admin.Post("/reconcile", cfg.Admin.Reconcile)
}
