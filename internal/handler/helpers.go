package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/service"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	return parseChatIDParam(c.Params(key))
}

func parseChatIDParam(raw string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals(middleware.LocalUserID).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func userNameFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals(middleware.LocalUserName).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func userRoleFromContext(c *fiber.Ctx) models.Role {
	if v, ok := c.Locals(middleware.LocalUserRole).(string); ok {
		return models.NormalizeRole(v)
	}
	return ""
}

func callerFromContext(c *fiber.Ctx) service.Caller {
	return service.Caller{
		ID:   userIDFromContext(c),
		Name: userNameFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// serviceErrorStatus maps service sentinels onto HTTP status codes. Unknown
// errors stay internal; their text never reaches the client.
func serviceErrorStatus(err error) int {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrSurplusValidation),
		errors.Is(err, service.ErrMessageEmpty),
		errors.Is(err, service.ErrImageNotAllowed):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotParty),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrForbiddenContact):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrChatNotFound),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, service.ErrNotificationNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrNotReady):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrChatArchived):
		return fiber.StatusGone
	case errors.Is(err, service.ErrCodeMismatch):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrLocationUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func serviceErrorMessage(err error, status int) string {
	if status == fiber.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
