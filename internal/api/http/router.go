package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nftix/ticket-lifecycle/internal/api/http/handlers"
	"github.com/nftix/ticket-lifecycle/internal/auth"
	"github.com/nftix/ticket-lifecycle/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Lifecycle       *handlers.LifecycleHandler
	Webhook         *handlers.WebhookHandler
	RelayMiddleware *auth.RelayMiddleware
	Metrics         *observability.Metrics
	MetricsPath     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Post("/validateTicket", cfg.Lifecycle.ValidateTicket)
	app.Get("/getUserTickets", cfg.Lifecycle.GetUserTickets)
	app.Post("/processLoyaltyReward", cfg.Lifecycle.ProcessLoyaltyReward)
	app.Get("/getEventStats", cfg.Lifecycle.GetEventStats)
	app.Get("/tickets/:tokenId", cfg.Lifecycle.GetTicket)

	app.Post("/blockchainWebhook", cfg.RelayMiddleware.Handle, cfg.Webhook.BlockchainWebhook)
}
