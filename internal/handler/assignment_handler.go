package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/service"
	"github.com/noah-isme/steward-api/internal/utils"
)

// AssignmentHandler wires checkout and checkin routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	member := middleware.AuthOptions{Role: middleware.AuthRoleMember}
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("/checkout", middleware.WithAuth(h.checkout, admin))
	router.Post("/checkin/:asset_id", middleware.WithAuth(h.checkin, member))
	router.Get("/active", middleware.WithAuth(h.active, member))
	router.Get("/history", middleware.WithAuth(h.history, member))
	router.Get("/history/:asset_id", middleware.WithAuth(h.assetHistory, admin))
}

func (h *AssignmentHandler) checkout(c *fiber.Ctx) error {
	var payload dto.CheckoutRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.Checkout(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to check out asset")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "asset checked out", assignment)
}

func (h *AssignmentHandler) checkin(c *fiber.Ctx) error {
	assetID, err := parseIDParam(c, "asset_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Checkin(c.UserContext(), actorFromContext(c), assetID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to check in asset")
	}
	return utils.SendSuccess(c, "asset checked in", assignment)
}

func (h *AssignmentHandler) active(c *fiber.Ctx) error {
	assignments, err := h.service.ListActive(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list active assignments")
	}
	return utils.SendSuccess(c, "active assignments retrieved", assignments)
}

func (h *AssignmentHandler) history(c *fiber.Ctx) error {
	assignments, err := h.service.ListHistory(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assignment history")
	}
	return utils.SendSuccess(c, "assignment history retrieved", assignments)
}

func (h *AssignmentHandler) assetHistory(c *fiber.Ctx) error {
	assetID, err := parseIDParam(c, "asset_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.service.AssetHistory(c.UserContext(), actorFromContext(c), assetID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list asset history")
	}
	return utils.SendSuccess(c, "asset history retrieved", assignments)
}
