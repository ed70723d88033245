package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"archivia/internal/docformat"
	"archivia/internal/http/middleware"
	"archivia/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps service and validation sentinels to responses.
// Content rejections are reported with one generic message whatever the cause.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidStudent):
		return writeError(c, fiber.StatusUnprocessableEntity, "INVALID_STUDENT", "student_id must be a positive integer")
	case errors.Is(err, service.ErrFileRequired):
		return writeError(c, fiber.StatusUnprocessableEntity, "FILE_REQUIRED", "file is required")
	case errors.Is(err, docformat.ErrTooLarge):
		return writeError(c, fiber.StatusUnprocessableEntity, "FILE_TOO_LARGE", "file exceeds the 10 MB limit")
	case errors.Is(err, service.ErrGroupNotFound):
		return writeError(c, fiber.StatusUnprocessableEntity, "INVALID_GROUP", "document group does not belong to student")
	case errors.Is(err, docformat.ErrRejected):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", "invalid file content")
	case errors.Is(err, service.ErrStudentNotFound):
		return writeError(c, fiber.StatusNotFound, "STUDENT_NOT_FOUND", "student not found")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrUnsupportedExport):
		return writeError(c, fiber.StatusUnprocessableEntity, "UNSUPPORTED_EXPORT", "document type cannot be exported to pdf")
	case errors.Is(err, service.ErrNothingToExport):
		return writeError(c, fiber.StatusUnprocessableEntity, "NOTHING_TO_EXPORT", "document has no printable images")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "not allowed for this role")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
