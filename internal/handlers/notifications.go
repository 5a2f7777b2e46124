package handlers

import (
	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

// RegisterDeviceToken saves the FCM token for push notifications
func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	var req models.DeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Token is required")
	}

	if err := h.svc.Push.RegisterDeviceToken(c.UserContext(), middleware.GetUserID(c), req.Token); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
