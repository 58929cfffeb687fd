package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/service"
	"github.com/foodloop/foodloop-api/internal/utils"
)

// NotificationHandler wires the lifecycle notification endpoints.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler creates a notification handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register binds notification routes under the provided router group.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	notifications, err := h.service.List(h.requestContext(c), callerFromContext(c), limit, offset)
	if err != nil {
		return h.sendServiceError(c, err, "failed to list notifications")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(h.requestContext(c), callerFromContext(c), id)
	if err != nil {
		return h.sendServiceError(c, err, "failed to mark notification read")
	}

	return utils.SendSuccess(c, "notification read", notification)
}

func (h *NotificationHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *NotificationHandler) sendServiceError(c *fiber.Ctx, err error, logMessage string) error {
	status := serviceErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Msg(logMessage)
	}
	return utils.SendError(c, status, serviceErrorMessage(err, status))
}
