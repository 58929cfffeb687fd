package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/service"
	"github.com/foodloop/foodloop-api/internal/utils"
)

// ChatHandler wires chat endpoints including the websocket upgrade.
type ChatHandler struct {
	service service.ChatService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/", h.open)
	router.Get("/", h.list)
	router.Get("/:id/messages", h.history)
	router.Post("/:id/messages", h.send)

	router.Use("/:id/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			c.Locals("stream_caller", callerFromContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/:id/stream", websocket.New(h.handleConnection))
}

func (h *ChatHandler) open(c *fiber.Ctx) error {
	var payload dto.ChatOpenRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	chat, err := h.service.OpenChat(h.requestContext(c), callerFromContext(c), payload)
	if err != nil {
		return h.sendServiceError(c, err, "failed to open chat")
	}

	return utils.SendSuccess(c, "chat ready", chat)
}

func (h *ChatHandler) list(c *fiber.Ctx) error {
	chats, err := h.service.ListForUser(h.requestContext(c), callerFromContext(c))
	if err != nil {
		return h.sendServiceError(c, err, "failed to list chats")
	}

	return utils.SendSuccess(c, "chats", chats)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	var payload dto.ChatSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(h.requestContext(c), chatID, callerFromContext(c), payload)
	if err != nil {
		return h.sendServiceError(c, err, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat id")
	}

	var beforePtr *time.Time
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		beforePtr = &parsed
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	query := dto.ChatHistoryQuery{Before: beforePtr, Limit: limit}
	messages, err := h.service.History(h.requestContext(c), chatID, callerFromContext(c), query)
	if err != nil {
		return h.sendServiceError(c, err, "failed to load chat history")
	}

	return utils.SendSuccess(c, "chat history", messages)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	caller, _ := conn.Locals("stream_caller").(service.Caller)
	if caller.ID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	chatID, err := parseChatIDParam(conn.Params("id"))
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid chat id"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	opts := service.StreamOptions{
		ChatID:  chatID,
		Caller:  caller,
		Context: baseCtx,
	}

	h.logger.Info().Str("user_id", caller.ID).Uint("chat_id", chatID).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", caller.ID).Uint("chat_id", chatID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *ChatHandler) sendServiceError(c *fiber.Ctx, err error, logMessage string) error {
	status := serviceErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Msg(logMessage)
	}
	return utils.SendError(c, status, serviceErrorMessage(err, status))
}
