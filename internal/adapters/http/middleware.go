package httpadapter

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// withRequestID reuses the caller's request id or mints one, and puts it in
// the user context so every log line of the request carries it.
func withRequestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.SetUserContext(observability.WithRequestID(c.UserContext(), id))
	return c.Next()
}

// withLogging logs every request once it has been handled.
func withLogging(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if c.Path() == "/healthz" {
		return err
	}

	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}
	observability.LoggerFromContext(c.UserContext()).Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// errorHandler renders every returned error as {"error": msg}.
func errorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	msg := "internal server error"

	var fe *fiber.Error
	var appErr *domain.AppError
	switch {
	case errors.As(err, &fe):
		msg = fe.Message
	case errors.As(err, &appErr) && status != fiber.StatusInternalServerError:
		msg = appErr.Message
	default:
		observability.LoggerFromContext(c.UserContext()).Error("request failed", "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch domain.CodeOf(err) {
	case domain.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case domain.CodeNotFound:
		return fiber.StatusNotFound
	case domain.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func methodNotAllowed(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusMethodNotAllowed, "method not allowed")
}
