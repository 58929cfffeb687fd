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

// PredictionHandler exposes the surplus/spoilage estimator.
type PredictionHandler struct {
	service service.PredictionService
	logger  zerolog.Logger
}

// NewPredictionHandler creates a prediction handler instance.
func NewPredictionHandler(service service.PredictionService, logger zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{
		service: service,
		logger:  logger.With().Str("component", "prediction_handler").Logger(),
	}
}

// Register binds prediction routes under the provided router group.
func (h *PredictionHandler) Register(router fiber.Router) {
	router.Post("/", h.estimate)
}

func (h *PredictionHandler) estimate(c *fiber.Ctx) error {
	var payload dto.PredictionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	result, err := h.service.Estimate(ctx, payload)
	if err != nil {
		status := serviceErrorStatus(err)
		if status == fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to run estimate")
		}
		return utils.SendError(c, status, serviceErrorMessage(err, status))
	}

	return utils.SendSuccess(c, "prediction", result)
}
