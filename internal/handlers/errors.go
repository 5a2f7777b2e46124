package handlers

import (
	"errors"
	"log/slog"

	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

const genericErrorMessage = "An unexpected error occurred. Please try again."

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindUpstream:
		return fiber.StatusServiceUnavailable
	case services.KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// fail answers with {"error": message} and the status of the error kind.
// Anything the services did not classify is logged and reported generically.
func fail(c *fiber.Ctx, err error) error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		slog.Error("unhandled error", "method", c.Method(), "path", c.Path(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": genericErrorMessage,
		})
	}

	msg := svcErr.Message
	if msg == "" {
		msg = genericErrorMessage
	}
	if svcErr.Kind == services.KindInternal || svcErr.Kind == services.KindUpstream {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "kind", svcErr.Kind.String(), "err", err)
	}
	return c.Status(statusFor(svcErr.Kind)).JSON(fiber.Map{
		"error": msg,
	})
}

// ok answers an action-style request: "error" is null and the extra fields
// carry the result.
func ok(c *fiber.Ctx, status int, fields fiber.Map) error {
	body := fiber.Map{"error": nil}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
