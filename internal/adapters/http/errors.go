package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int                 `json:"status"`
	Code      string              `json:"code"`    // bad_request, validation_error, not_found, datastore_unavailable, ...
	Message   string              `json:"message"` // Human-readable message
	Fields    []domain.FieldError `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errValidation returns a 400 error listing every offending field.
func errValidation(c *fiber.Ctx, verr *domain.ValidationError) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(400).JSON(APIError{
		Status:    400,
		Code:      "validation_error",
		Message:   verr.Error(),
		Fields:    verr.Fields,
		RequestID: reqID,
	})
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnavailable returns a 503 error. Datastore details stay in the logs.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "datastore_unavailable", msg)
}

// errFromService maps a usecase error onto the API error envelope.
func errFromService(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	var dsErr *domain.DatastoreError

	switch {
	case errors.As(err, &verr):
		return errValidation(c, verr)
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "resource not found")
	case errors.Is(err, domain.ErrConflict):
		return errConflict(c, err.Error())
	case errors.As(err, &dsErr):
		LoggerFromCtx(c.UserContext()).Error("datastore failure", "op", dsErr.Op, "error", dsErr.Err)
		return errUnavailable(c, "ambulance registry is unavailable, retry shortly")
	default:
		LoggerFromCtx(c.UserContext()).Error("unhandled service error", slog.Any("error", err))
		return errInternal(c, "internal error")
	}
}
