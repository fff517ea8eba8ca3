package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/service"
	"github.com/noah-isme/steward-api/internal/utils"
)

// BillingHandler reports the caller's plan and usage.
type BillingHandler struct {
	plans  service.PlanService
	logger zerolog.Logger
}

// NewBillingHandler constructs the handler.
func NewBillingHandler(plans service.PlanService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		plans:  plans,
		logger: logger.With().Str("component", "billing_handler").Logger(),
	}
}

// Register attaches billing routes.
func (h *BillingHandler) Register(router fiber.Router) {
	router.Get("/plan", middleware.WithAuth(h.plan, middleware.AuthOptions{Role: middleware.AuthRoleMember}))
}

func (h *BillingHandler) plan(c *fiber.Ctx) error {
	summary, err := h.plans.Summary(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load plan")
	}
	return utils.SendSuccess(c, "plan retrieved", summary)
}
