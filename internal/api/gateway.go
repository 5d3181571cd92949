package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/gateway"
	"github.com/parley-chat/parley-server/internal/httputil"
	"github.com/parley-chat/parley-server/internal/user"
)

// GatewayHandler serves the WebSocket upgrade endpoint. Authorization happens before the protocol switch: a rejected
// caller gets a plain HTTP error, never a half-open socket.
type GatewayHandler struct {
	gate     *auth.Gate
	users    user.Repository
	registry *gateway.Registry
	messages gateway.MessagePoster
	log      zerolog.Logger
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(gate *auth.Gate, users user.Repository, registry *gateway.Registry, messages gateway.MessagePoster, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gate:     gate,
		users:    users,
		registry: registry,
		messages: messages,
		log:      logger,
	}
}

// Upgrade handles GET /ws?chat_id=&token=. The token may arrive in the query string (browser WebSocket clients cannot
// set headers) or as a standard bearer header.
func (h *GatewayHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	chatID, err := uuid.Parse(c.Query("chat_id"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "chat_id must be a valid UUID")
	}

	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "Missing token")
	}

	userID, err := h.gate.AuthorizeStream(c.Context(), token, chatID)
	if err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, "Not an accepted member of this chat")
		}
		if errors.Is(err, auth.ErrUnauthorized) {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "Invalid or expired token")
		}
		h.log.Error().Err(err).Str("handler", "gateway").Msg("stream authorization failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "An internal error occurred")
	}

	u, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("user lookup for stream failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "An internal error occurred")
	}

	return websocket.New(func(conn *websocket.Conn) {
		session := gateway.NewStreamSession(h.registry, h.messages, conn, chatID, userID, u.Username, h.log)
		session.Run(context.Background())
	})(c)
}
