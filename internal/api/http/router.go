package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/isp-support/internal/api/http/handlers"
	"github.com/spec-kit/isp-support/internal/auth"
	"github.com/spec-kit/isp-support/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	Attachments    *handlers.AttachmentsHandler
	Realtime       *realtime.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/token", cfg.Auth.DevToken)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	if cfg.Realtime != nil {
		cfg.Realtime.Register(app, cfg.AuthMiddleware.Handle)
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/metrics", auth.RequireAdmin(), cfg.Health.Metrics)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/recent", cfg.Tickets.RecentTickets)
	tickets.Post("/internal", auth.RequireStaff(), cfg.Tickets.CreateInternalTicket)
	tickets.Post("/bulk", auth.RequireAdmin(), cfg.Tickets.BulkUpdate)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", auth.RequireStaff(), cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/assign", auth.RequireStaff(), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/self-assign", auth.RequireStaff(), cfg.Tickets.SelfAssignTicket)
	tickets.Get("/:id/history", cfg.Tickets.AssignmentHistory)
	tickets.Post("/:id/escalate", auth.RequireStaff(), cfg.Tickets.EscalateTicket)
	tickets.Post("/:id/resolve", auth.RequireStaff(), cfg.Tickets.ResolveTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Post("/:id/close", auth.RequireStaff(), cfg.Tickets.CloseTicket)
	tickets.Post("/:id/comments", cfg.Comments.AddComment)
	tickets.Get("/:id/comments", cfg.Comments.ListComments)
	tickets.Post("/:id/attachments", cfg.Attachments.AttachToTicket)

	api.Get("/customers/:id/tickets", cfg.Tickets.ListCustomerTickets)
	api.Post("/comments/:id/attachments", cfg.Comments.AddCommentAttachment)
	api.Get("/attachments/:id", cfg.Attachments.Download)
	api.Delete("/attachments/:id", auth.RequireStaff(), cfg.Attachments.Delete)
}
