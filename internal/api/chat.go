package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/chat"
	"github.com/parley-chat/parley-server/internal/httputil"
)

// ChatHandler serves chat creation.
type ChatHandler struct {
	chats *chat.Service
	log   zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *chat.Service, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{chats: svc, log: logger}
}

type createChatRequest struct {
	Name     *string  `json:"name"`
	Invitees []string `json:"invitees"`
}

type createChatResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Create handles POST /create_chat.
func (h *ChatHandler) Create(c *fiber.Ctx) error {
	var body createChatRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	created, err := h.chats.Create(c.Context(), chat.CreateRequest{
		CreatorID: auth.UserID(c),
		Name:      body.Name,
		Invitees:  body.Invitees,
	})
	if err != nil {
		return h.mapChatError(c, err)
	}

	return httputil.Success(c, createChatResponse{ID: created.ID, Name: created.Name})
}

// mapChatError converts chat-layer errors to appropriate HTTP responses.
func (h *ChatHandler) mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chat.ErrNameLength):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "chat").Msg("unhandled chat service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "An internal error occurred")
	}
}
