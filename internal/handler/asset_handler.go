package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/service"
	"github.com/noah-isme/steward-api/internal/utils"
)

// AssetHandler exposes the asset registry.
type AssetHandler struct {
	service service.AssetService
	logger  zerolog.Logger
}

// NewAssetHandler constructs the handler.
func NewAssetHandler(service service.AssetService, logger zerolog.Logger) *AssetHandler {
	return &AssetHandler{
		service: service,
		logger:  logger.With().Str("component", "asset_handler").Logger(),
	}
}

// Register attaches asset routes.
func (h *AssetHandler) Register(router fiber.Router) {
	member := middleware.AuthOptions{Role: middleware.AuthRoleMember}
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("", middleware.WithAuth(h.list, member))
	router.Post("", middleware.WithAuth(h.create, admin))
	router.Get("/:id", middleware.WithAuth(h.get, member))
	router.Put("/:id", middleware.WithAuth(h.update, admin))
	router.Post("/:id/retire", middleware.WithAuth(h.retire, admin))
	router.Delete("/:id", middleware.WithAuth(h.delete, admin))
}

func (h *AssetHandler) list(c *fiber.Ctx) error {
	req := dto.AssetListRequest{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}

	assets, err := h.service.List(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assets")
	}

	meta := fiber.Map{
		"count": len(assets),
		"filters": fiber.Map{
			"status": req.Status,
			"search": req.Search,
		},
	}
	return utils.OK(c, assets, "assets retrieved", meta)
}

func (h *AssetHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	asset, err := h.service.Get(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load asset")
	}
	return utils.SendSuccess(c, "asset retrieved", asset)
}

func (h *AssetHandler) create(c *fiber.Ctx) error {
	var payload dto.AssetCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	asset, err := h.service.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create asset")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "asset created", asset)
}

func (h *AssetHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssetUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	asset, err := h.service.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update asset")
	}
	return utils.SendSuccess(c, "asset updated", asset)
}

func (h *AssetHandler) retire(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssetRetireRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	asset, err := h.service.Retire(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to retire asset")
	}
	return utils.SendSuccess(c, "asset retired", asset)
}

func (h *AssetHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete asset")
	}
	return utils.SendSuccess(c, "asset deleted", nil)
}
