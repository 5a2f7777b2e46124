package handlers

import (
	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

type Services struct {
	Auth  *services.AuthService
	Goals *services.GoalService
	Tasks *services.TaskService
	Chat  *services.ChatService
	Push  *services.PushService
}

type Handler struct {
	svc          Services
	hub          *Hub
	secret       []byte
	secureCookie bool
}

// New builds the HTTP handlers. secret signs session tokens; secureCookie
// marks the session cookie Secure and should be on behind HTTPS.
func New(svc Services, hub *Hub, secret []byte, secureCookie bool) *Handler {
	if hub == nil {
		hub = NewHub()
	}
	return &Handler{svc: svc, hub: hub, secret: secret, secureCookie: secureCookie}
}

func (h *Handler) Hub() *Hub { return h.hub }

func (h *Handler) Secret() []byte { return h.secret }

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
