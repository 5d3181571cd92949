// Package httputil provides shared HTTP response helpers and middleware.
package httputil

import "github.com/gofiber/fiber/v2"

// Code identifies an error category in API error responses.
type Code string

// Error codes returned in API error bodies.
const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// ErrorBody holds structured error details.
type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps failed API responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Success sends a 200 JSON response with the given payload.
func Success(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

// SuccessStatus sends a JSON response with a custom status code.
func SuccessStatus(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(data)
}

// Fail sends a JSON error response with the given status, code, and message.
func Fail(c *fiber.Ctx, status int, code Code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
		},
	})
}
