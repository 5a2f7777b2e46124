package handlers

import (
	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

// Chat answers one mentor turn. When the body carries no "goals" the saved
// goals are used as context.
func (h *Handler) Chat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	var goals []services.GoalView
	if req.Goals != nil {
		goals = make([]services.GoalView, 0, len(req.Goals))
		for _, g := range req.Goals {
			goals = append(goals, services.ProjectChatGoal(g))
		}
	}

	reply, err := h.svc.Chat.Reply(c.UserContext(), middleware.GetUserID(c), req.ConversationID, req.Message, goals)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(models.ChatResponse{Reply: reply})
}

func (h *Handler) ChatHistory(c *fiber.Ctx) error {
	msgs, err := h.svc.Chat.History(c.UserContext(), middleware.GetUserID(c), c.Query("conversationId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (h *Handler) ClearChat(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	conversationID := c.Query("conversationId")

	if _, err := h.svc.Chat.Clear(c.UserContext(), userID, conversationID); err != nil {
		return fail(c, err)
	}

	h.hub.Broadcast(userID, WSEvent{Type: EventChatCleared, Data: fiber.Map{"conversationId": conversationID}})
	return c.JSON(fiber.Map{"success": true})
}
