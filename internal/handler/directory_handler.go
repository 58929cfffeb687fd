package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/service"
	"github.com/foodloop/foodloop-api/internal/utils"
)

// DirectoryHandler wires the contact directory endpoints.
type DirectoryHandler struct {
	service service.DirectoryService
	logger  zerolog.Logger
}

// NewDirectoryHandler creates a directory handler instance.
func NewDirectoryHandler(service service.DirectoryService, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.With().Str("component", "directory_handler").Logger(),
	}
}

// Register binds directory routes under the provided router group.
func (h *DirectoryHandler) Register(router fiber.Router) {
	router.Get("/contacts", h.contacts)
	router.Get("/nearby", h.nearby)
	router.Put("/location", h.updateLocation)
}

func (h *DirectoryHandler) contacts(c *fiber.Ctx) error {
	contacts, err := h.service.Contacts(h.requestContext(c), callerFromContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list contacts")
	}
	return utils.SendSuccess(c, "contacts", contacts)
}

func (h *DirectoryHandler) nearby(c *fiber.Ctx) error {
	var query dto.NearbyQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	contacts, err := h.service.Nearby(h.requestContext(c), callerFromContext(c), query)
	if err != nil {
		return h.sendServiceError(c, err, "failed to run proximity lookup")
	}

	return utils.SendSuccess(c, "nearby contacts", contacts)
}

func (h *DirectoryHandler) updateLocation(c *fiber.Ctx) error {
	var payload dto.LocationUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.UpsertLocation(h.requestContext(c), callerFromContext(c), payload); err != nil {
		return h.sendServiceError(c, err, "failed to update location")
	}

	return utils.SendSuccess(c, "location updated", nil)
}

func (h *DirectoryHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *DirectoryHandler) sendServiceError(c *fiber.Ctx, err error, logMessage string) error {
	status := serviceErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Msg(logMessage)
	}
	return utils.SendError(c, status, serviceErrorMessage(err, status))
}
