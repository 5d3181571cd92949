package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/httputil"
	"github.com/parley-chat/parley-server/internal/invite"
)

// InviteHandler serves invitation responses.
type InviteHandler struct {
	invites *invite.Service
	log     zerolog.Logger
}

// NewInviteHandler creates a new invite handler.
func NewInviteHandler(svc *invite.Service, logger zerolog.Logger) *InviteHandler {
	return &InviteHandler{invites: svc, log: logger}
}

type respondRequest struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	Accept       bool      `json:"accept"`
}

// Respond handles POST /invites/respond. An invitation that is missing, already resolved, or addressed to someone
// else is indistinguishable to the caller; all three read as a bad invitation ID.
func (h *InviteHandler) Respond(c *fiber.Ctx) error {
	var body respondRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}
	if body.InvitationID == uuid.Nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "invitation_id is required")
	}

	inv, err := h.invites.Respond(c.Context(), body.InvitationID, auth.UserID(c), body.Accept)
	if err != nil {
		return h.mapInviteError(c, err)
	}

	return httputil.Success(c, inv)
}

// mapInviteError converts invite-layer errors to appropriate HTTP responses.
func (h *InviteHandler) mapInviteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, invite.ErrNotFound):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "No pending invitation with this ID is addressed to you")
	default:
		h.log.Error().Err(err).Str("handler", "invite").Msg("unhandled invite service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "An internal error occurred")
	}
}
