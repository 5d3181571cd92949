package main

import (
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/parley-chat/parley-server/internal/httputil"
)

func TestStatusToCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   httputil.Code
	}{
		{"not found", fiber.StatusNotFound, httputil.CodeNotFound},
		{"unauthorized", fiber.StatusUnauthorized, httputil.CodeUnauthorized},
		{"forbidden", fiber.StatusForbidden, httputil.CodeForbidden},
		{"too many requests", fiber.StatusTooManyRequests, httputil.CodeRateLimited},
		{"generic 4xx falls back to validation error", fiber.StatusMethodNotAllowed, httputil.CodeValidation},
		{"another 4xx", fiber.StatusGone, httputil.CodeValidation},
		{"5xx falls back to internal error", fiber.StatusInternalServerError, httputil.CodeInternal},
		{"502 falls back to internal error", fiber.StatusBadGateway, httputil.CodeInternal},
		{"unknown status falls back to internal error", 600, httputil.CodeInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := statusToCode(tt.status)
			if got != tt.want {
				t.Errorf("statusToCode(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}
