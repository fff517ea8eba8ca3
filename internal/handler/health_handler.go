package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/steward-api/internal/config"
	"github.com/noah-isme/steward-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Service     string          `json:"service"`
	Environment string          `json:"environment"`
	Components  map[string]bool `json:"components"`
}

// HealthDependencies reports which optional backends were configured at startup.
type HealthDependencies struct {
	Redis   bool
	NATS    bool
	Billing bool
	Storage bool
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, deps HealthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Components: map[string]bool{
				"database": true,
				"redis":    deps.Redis,
				"nats":     deps.NATS,
				"billing":  deps.Billing,
				"storage":  deps.Storage,
			},
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
