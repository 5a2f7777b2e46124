package handlers

import (
	"time"

	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.svc.Auth.Register(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return h.signIn(c, fiber.StatusCreated, user)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.svc.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return h.signIn(c, fiber.StatusOK, user)
}

func (h *Handler) GitHubLogin(c *fiber.Ctx) error {
	var req models.GitHubAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.svc.Auth.GitHubLogin(c.UserContext(), req.Code)
	if err != nil {
		return fail(c, err)
	}
	return h.signIn(c, fiber.StatusOK, user)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	user, err := h.svc.Auth.Me(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// signIn issues a session token as both response body and cookie.
func (h *Handler) signIn(c *fiber.Ctx, status int, user *models.User) error {
	token, err := middleware.GenerateToken(h.secret, user.ID, user.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(middleware.TokenTTL),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(status).JSON(models.AuthResponse{
		Token: token,
		User:  *user,
	})
}
