package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/service"
	"github.com/foodloop/foodloop-api/internal/utils"
)

// SurplusHandler wires the surplus lifecycle endpoints.
type SurplusHandler struct {
	service service.SurplusService
	logger  zerolog.Logger
}

// NewSurplusHandler creates a surplus handler instance.
func NewSurplusHandler(service service.SurplusService, logger zerolog.Logger) *SurplusHandler {
	return &SurplusHandler{
		service: service,
		logger:  logger.With().Str("component", "surplus_handler").Logger(),
	}
}

// Register binds surplus routes under the provided router group. Role gates
// are applied per route; the group itself only guarantees authentication.
func (h *SurplusHandler) Register(router fiber.Router) {
	router.Post("/", middleware.RequireRole(string(models.RoleCanteen)), h.create)
	router.Get("/available", middleware.RequireRole(string(models.RoleNGO), string(models.RoleDriver)), h.listAvailable)
	router.Get("/mine", middleware.RequireRole(string(models.RoleCanteen)), h.listMine)
	router.Get("/claimed", middleware.RequireRole(string(models.RoleNGO)), h.listClaimed)
	router.Get("/assigned", middleware.RequireRole(string(models.RoleDriver)), h.listAssigned)
	router.Get("/needing-driver", middleware.RequireRole(string(models.RoleDriver)), h.listNeedingDriver)
	router.Get("/:id", h.get)
	router.Post("/:id/claim", middleware.RequireRole(string(models.RoleNGO)), h.claim)
	router.Post("/:id/assign", middleware.RequireRole(string(models.RoleDriver)), h.assignDriver)
	// The 4-digit code is guessable by brute force without a cap here.
	verifyLimit := middleware.RateLimit("surplus-verify", 10, time.Minute)
	router.Post("/:id/verify-pickup", middleware.RequireRole(string(models.RoleCanteen)), verifyLimit, h.verifyPickup)
	router.Post("/:id/verify-delivery", middleware.RequireRole(string(models.RoleNGO)), verifyLimit, h.verifyDelivery)
}

func (h *SurplusHandler) create(c *fiber.Ctx) error {
	var payload dto.SurplusCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	image := optionalFormFile(c, "image")

	record, err := h.service.Create(h.requestContext(c), callerFromContext(c), payload, image)
	if err != nil {
		return h.sendServiceError(c, err, "failed to create surplus record")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "surplus record created", record)
}

func (h *SurplusHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid surplus id")
	}

	record, err := h.service.Get(h.requestContext(c), id)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			return utils.SendError(c, fiber.StatusNotFound, "surplus record not found")
		}
		return h.sendServiceError(c, err, "failed to load surplus record")
	}

	return utils.SendSuccess(c, "surplus record", record)
}

func (h *SurplusHandler) listAvailable(c *fiber.Ctx) error {
	records, err := h.service.ListAvailable(h.requestContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list available surplus")
	}
	return utils.SendSuccess(c, "available surplus", records)
}

func (h *SurplusHandler) listMine(c *fiber.Ctx) error {
	records, err := h.service.ListForCanteen(h.requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list canteen surplus")
	}
	return utils.SendSuccess(c, "canteen surplus", records)
}

func (h *SurplusHandler) listClaimed(c *fiber.Ctx) error {
	records, err := h.service.ListClaimedBy(h.requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list claimed surplus")
	}
	return utils.SendSuccess(c, "claimed surplus", records)
}

func (h *SurplusHandler) listAssigned(c *fiber.Ctx) error {
	records, err := h.service.ListAssignedTo(h.requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list assigned deliveries")
	}
	return utils.SendSuccess(c, "assigned deliveries", records)
}

func (h *SurplusHandler) listNeedingDriver(c *fiber.Ctx) error {
	records, err := h.service.ListClaimedNeedingDriver(h.requestContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list deliveries needing a driver")
	}
	return utils.SendSuccess(c, "deliveries needing a driver", records)
}

func (h *SurplusHandler) claim(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid surplus id")
	}

	if err := h.service.Claim(h.requestContext(c), id, callerFromContext(c)); err != nil {
		return h.sendServiceError(c, err, "failed to claim surplus record")
	}

	return utils.SendSuccess(c, "surplus record claimed", nil)
}

func (h *SurplusHandler) assignDriver(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid surplus id")
	}

	assignment, err := h.service.AssignDriver(h.requestContext(c), id, callerFromContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to assign driver")
	}

	return utils.SendSuccess(c, "driver assigned", assignment)
}

func (h *SurplusHandler) verifyPickup(c *fiber.Ctx) error {
	return h.verify(c, h.service.VerifyPickup, "pickup verified")
}

func (h *SurplusHandler) verifyDelivery(c *fiber.Ctx) error {
	return h.verify(c, h.service.VerifyDelivery, "delivery verified")
}

func (h *SurplusHandler) verify(c *fiber.Ctx, step func(context.Context, uint, service.Caller, string) error, message string) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid surplus id")
	}

	var payload dto.VerifyCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := step(h.requestContext(c), id, callerFromContext(c), payload.Code); err != nil {
		return h.sendServiceError(c, err, "verification failed")
	}

	return utils.SendSuccess(c, message, nil)
}

func (h *SurplusHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *SurplusHandler) sendServiceError(c *fiber.Ctx, err error, logMessage string) error {
	status := serviceErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Msg(logMessage)
	}
	return utils.SendError(c, status, serviceErrorMessage(err, status))
}

func optionalFormFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	file, err := c.FormFile(key)
	if err != nil {
		return nil
	}
	return file
}
