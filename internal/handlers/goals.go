package handlers

import (
	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) GetGoals(c *fiber.Ctx) error {
	goals, err := h.svc.Goals.List(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"goals": goals})
}

// GetDemoGoals lists the user's goals without their tasks, newest first.
func (h *Handler) GetDemoGoals(c *fiber.Ctx) error {
	goals, err := h.svc.Goals.List(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	for i := range goals {
		goals[i].Tasks = nil
	}
	return c.JSON(fiber.Map{"goals": goals})
}

func (h *Handler) CreateGoal(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.GoalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in, err := services.GoalInputFromRequest(req)
	if err != nil {
		return fail(c, err)
	}

	goal, err := h.svc.Goals.Create(c.UserContext(), userID, in)
	if err != nil {
		return fail(c, err)
	}

	h.hub.Broadcast(userID, WSEvent{Type: EventGoalUpdated, GoalID: goal.ID.String(), Data: goal})
	return ok(c, fiber.StatusCreated, fiber.Map{"goal": goal})
}

// UpdateGoal replaces the goal's fields. progress is optional and clamped.
func (h *Handler) UpdateGoal(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	goalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid goal ID")
	}

	var req models.GoalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in, err := services.GoalInputFromRequest(req)
	if err != nil {
		return fail(c, err)
	}

	goal, err := h.svc.Goals.Update(c.UserContext(), userID, goalID, in, req.Progress)
	if err != nil {
		return fail(c, err)
	}

	h.hub.Broadcast(userID, WSEvent{Type: EventGoalUpdated, GoalID: goal.ID.String(), Data: goal})
	return ok(c, fiber.StatusOK, fiber.Map{"goal": goal})
}

func (h *Handler) DeleteGoal(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	goalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid goal ID")
	}

	if err := h.svc.Goals.Delete(c.UserContext(), userID, goalID); err != nil {
		return fail(c, err)
	}

	h.hub.Broadcast(userID, WSEvent{Type: EventGoalDeleted, GoalID: goalID.String()})
	return ok(c, fiber.StatusOK, nil)
}
