package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/httputil"
	"github.com/parley-chat/parley-server/internal/message"
)

// MessageHandler serves message posting and history reads.
type MessageHandler struct {
	messages *message.Service
	log      zerolog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *message.Service, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{messages: svc, log: logger}
}

type sendMessageRequest struct {
	ChatID  uuid.UUID `json:"chat_id"`
	Message string    `json:"message"`
}

// Send handles POST /send_message. The response body is the persisted message, timestamp and ID included, so REST
// callers see exactly what stream subscribers received.
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var body sendMessageRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}
	if body.ChatID == uuid.Nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "chat_id is required")
	}

	m, err := h.messages.Post(c.Context(), body.ChatID, auth.UserID(c), body.Message)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	return httputil.Success(c, m)
}

// History handles GET /get_messages/:chat_id.
func (h *MessageHandler) History(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("chat_id"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "chat_id must be a valid UUID")
	}

	msgs, err := h.messages.List(c.Context(), chatID)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	return httputil.Success(c, msgs)
}

// mapMessageError converts message-layer errors to appropriate HTTP responses.
func (h *MessageHandler) mapMessageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, message.ErrNotMember):
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, err.Error())
	case errors.Is(err, message.ErrEmptyContent), errors.Is(err, message.ErrTooLong):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "message").Msg("unhandled message service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "An internal error occurred")
	}
}
