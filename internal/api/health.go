package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/parley-chat/parley-server/internal/httputil"
)

// HealthHandler serves the health check endpoint. Valkey is optional; a nil client reports "disabled" and never
// degrades the overall status.
type HealthHandler struct {
	DB     *pgxpool.Pool
	Valkey *redis.Client
}

// Health pings PostgreSQL and Valkey, returning component status.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	pgStatus := "ok"
	if err := h.DB.Ping(ctx); err != nil {
		pgStatus = "unavailable"
	}

	vkStatus := "disabled"
	if h.Valkey != nil {
		vkStatus = "ok"
		if err := h.Valkey.Ping(ctx).Err(); err != nil {
			vkStatus = "unavailable"
		}
	}

	overall := "ok"
	status := fiber.StatusOK
	if pgStatus != "ok" || vkStatus == "unavailable" {
		overall = "degraded"
		status = fiber.StatusServiceUnavailable
	}

	return httputil.SuccessStatus(c, status, fiber.Map{
		"status":   overall,
		"postgres": pgStatus,
		"valkey":   vkStatus,
	})
}
