package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/service"
	"github.com/noah-isme/steward-api/internal/utils"
)

const activityPingInterval = 30 * time.Second

// ActivityHandler serves the activity log and its live stream.
type ActivityHandler struct {
	service service.ActivityService
	stream  service.ActivityStream
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler. stream may be nil, which disables the websocket.
func NewActivityHandler(service service.ActivityService, stream service.ActivityStream, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		stream:  stream,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("", middleware.WithAuth(h.list, admin))

	if h.stream == nil {
		return
	}
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	})
	router.Get("/ws", middleware.WithAuth(websocket.New(h.follow), admin))
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.ActivityListRequest{
		Page:      page,
		PageSize:  pageSize,
		EventType: strings.TrimSpace(c.Query("event_type")),
	}
	if raw := strings.TrimSpace(c.Query("asset_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid asset_id")
		}
		assetID := uint(parsed)
		req.AssetID = &assetID
	}

	result, err := h.service.List(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity")
	}

	meta := fiber.Map{
		"pagination": result.Pagination,
		"filters": fiber.Map{
			"asset_id":   req.AssetID,
			"event_type": req.EventType,
		},
	}
	return utils.OK(c, result.Items, "activity retrieved", meta)
}

func (h *ActivityHandler) follow(conn *websocket.Conn) {
	orgID, _ := conn.Locals(middleware.LocalOrgID).(string)
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	if orgID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "org id missing"))
		_ = conn.Close()
		return
	}

	entries, unsubscribe := h.stream.Subscribe(orgID)
	defer unsubscribe()

	logger := h.logger.With().Str("org_id", orgID).Str("user_id", userID).Logger()
	logger.Info().Msg("activity stream connected")
	defer logger.Info().Msg("activity stream disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(activityPingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if err := conn.WriteJSON(entry); err != nil {
				logger.Debug().Err(err).Msg("activity stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("activity stream ping failed")
				return
			}
		case <-closed:
			return
		}
	}
}
