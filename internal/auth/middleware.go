package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/parley-chat/parley-server/internal/httputil"
)

// localsUserKey is the Locals key under which RequireAuth stores the resolved user ID.
const localsUserKey = "user_id"

// RequireAuth returns Fiber middleware that authorizes the request through the gate and stores the resolved user ID
// in c.Locals("user_id").
func RequireAuth(gate *Gate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get("Authorization"))
		if !ok {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "Missing or malformed authorization header")
		}

		userID, err := gate.AuthorizeRequest(c.Context(), token)
		if err != nil {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "Invalid or expired token")
		}

		c.Locals(localsUserKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user ID stored by RequireAuth. It must only be called from handlers behind the
// middleware; the zero UUID is returned otherwise.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localsUserKey).(uuid.UUID)
	return id
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) || len(header) == len(prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
