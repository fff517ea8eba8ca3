package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/service"
	"github.com/noah-isme/steward-api/internal/utils"
)

// IncidentHandler serves incident reporting and triage.
type IncidentHandler struct {
	service service.IncidentService
	logger  zerolog.Logger
}

// NewIncidentHandler constructs the handler.
func NewIncidentHandler(service service.IncidentService, logger zerolog.Logger) *IncidentHandler {
	return &IncidentHandler{
		service: service,
		logger:  logger.With().Str("component", "incident_handler").Logger(),
	}
}

// Register attaches incident routes. Photo uploads accept members; the service
// limits them to admins and the reporter.
func (h *IncidentHandler) Register(router fiber.Router) {
	member := middleware.AuthOptions{Role: middleware.AuthRoleMember}
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("", middleware.WithAuth(h.report, member))
	router.Get("", middleware.WithAuth(h.list, admin))
	router.Get("/:id", middleware.WithAuth(h.get, admin))
	router.Put("/:id", middleware.WithAuth(h.update, admin))
	router.Post("/:id/photo", middleware.WithAuth(h.attachPhoto, member))
}

func (h *IncidentHandler) report(c *fiber.Ctx) error {
	var payload dto.IncidentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	incident, err := h.service.Report(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to report incident")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "incident reported", incident)
}

func (h *IncidentHandler) list(c *fiber.Ctx) error {
	includeArchived, err := parseQueryBool(c, "include_archived")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid include_archived")
	}

	req := dto.IncidentListRequest{
		Status:          c.Query("status"),
		Severity:        c.Query("severity"),
		IncludeArchived: includeArchived,
	}

	incidents, err := h.service.List(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list incidents")
	}

	meta := fiber.Map{
		"count": len(incidents),
		"filters": fiber.Map{
			"status":           req.Status,
			"severity":         req.Severity,
			"include_archived": req.IncludeArchived,
		},
	}
	return utils.OK(c, incidents, "incidents retrieved", meta)
}

func (h *IncidentHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	incident, err := h.service.Get(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load incident")
	}
	return utils.SendSuccess(c, "incident retrieved", incident)
}

func (h *IncidentHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.IncidentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	incident, err := h.service.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update incident")
	}
	return utils.SendSuccess(c, "incident updated", incident)
}

func (h *IncidentHandler) attachPhoto(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	incident, err := h.service.AttachPhoto(c.UserContext(), actorFromContext(c), id, file)
	if err != nil {
		return respondError(c, h.logger, err, "failed to attach photo")
	}
	return utils.SendSuccess(c, "photo attached", incident)
}
