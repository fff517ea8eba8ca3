package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/steward-api/internal/config"
	"github.com/noah-isme/steward-api/internal/handler"
	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssetHandler      *handler.AssetHandler
	AssignmentHandler *handler.AssignmentHandler
	IncidentHandler   *handler.IncidentHandler
	ActivityHandler   *handler.ActivityHandler
	DashboardHandler  *handler.DashboardHandler
	BillingHandler    *handler.BillingHandler
	Health            handler.HealthDependencies
	JWTMiddleware     fiber.Handler
	// RateLimitMax and RateLimitWindow configure the per-user limiter on mutating routes.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Health))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	var limiter fiber.Handler = func(c *fiber.Ctx) error { return c.Next() }
	if deps.RateLimitMax > 0 {
		limiter = middleware.RateLimit("api", deps.RateLimitMax, deps.RateLimitWindow)
	}

	if deps.AssetHandler != nil {
		deps.AssetHandler.Register(api.Group("/assets", jwtMiddleware, limiter))
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(api.Group("/assignments", jwtMiddleware, limiter))
	}
	if deps.IncidentHandler != nil {
		deps.IncidentHandler.Register(api.Group("/incidents", jwtMiddleware, limiter))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity", jwtMiddleware))
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(api.Group("/dashboard", jwtMiddleware))
	}
	if deps.BillingHandler != nil {
		deps.BillingHandler.Register(api.Group("/billing", jwtMiddleware))
	}
}
