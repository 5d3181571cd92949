// Package api contains the HTTP and WebSocket handlers. Handlers parse requests, delegate to the service layer, and
// map service errors onto HTTP responses; they hold no business logic of their own.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/httputil"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth *auth.Service
	log  zerolog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(svc *auth.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, log: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

// Register handles POST /register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body registerRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	if err := h.auth.Register(c.Context(), auth.RegisterRequest{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	}); err != nil {
		return h.mapAuthError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, fiber.Map{
		"message": "User registered successfully",
	})
}

// Login handles POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body loginRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	result, err := h.auth.Login(c.Context(), auth.LoginRequest{
		Username: body.Username,
		Password: body.Password,
	})
	if err != nil {
		return h.mapAuthError(c, err)
	}

	return httputil.Success(c, loginResponse{Token: result.Token, Type: "Bearer"})
}

// mapAuthError converts auth-layer errors to appropriate HTTP responses.
func (h *AuthHandler) mapAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrUsernameLength),
		errors.Is(err, auth.ErrUsernameInvalidChars),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrPasswordWeak):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	case errors.Is(err, auth.ErrAlreadyTaken):
		return httputil.Fail(c, fiber.StatusConflict, httputil.CodeConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "auth").Msg("unhandled auth service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternal, "An internal error occurred")
	}
}
