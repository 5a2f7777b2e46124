package handlers

import (
	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	goalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid goal ID")
	}

	var req models.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	task, goal, err := h.svc.Tasks.Create(c.UserContext(), userID, goalID, services.TaskInputFromRequest(req))
	if err != nil {
		return fail(c, err)
	}

	h.goalChanged(userID, goal)
	return ok(c, fiber.StatusCreated, fiber.Map{"task": task, "goal": goal})
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid task ID")
	}

	var req models.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	task, err := h.svc.Tasks.Update(c.UserContext(), userID, taskID, services.TaskInputFromRequest(req))
	if err != nil {
		return fail(c, err)
	}

	h.hub.Broadcast(userID, WSEvent{Type: EventGoalUpdated, GoalID: task.GoalID.String(), Data: fiber.Map{"task": task}})
	return ok(c, fiber.StatusOK, fiber.Map{"task": task})
}

func (h *Handler) ToggleTask(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid task ID")
	}

	task, goal, err := h.svc.Tasks.Toggle(c.UserContext(), userID, taskID)
	if err != nil {
		return fail(c, err)
	}

	h.goalChanged(userID, goal)
	return ok(c, fiber.StatusOK, fiber.Map{"task": task, "goal": goal})
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid task ID")
	}

	goal, err := h.svc.Tasks.Delete(c.UserContext(), userID, taskID)
	if err != nil {
		return fail(c, err)
	}

	h.goalChanged(userID, goal)
	return ok(c, fiber.StatusOK, fiber.Map{"goal": goal})
}

func (h *Handler) goalChanged(userID uuid.UUID, goal *models.Goal) {
	event := WSEvent{Type: EventGoalUpdated, GoalID: goal.ID.String(), Data: goal}
	if goal.Progress == 100 {
		event.Type = EventGoalCompleted
	}
	h.hub.Broadcast(userID, event)
}
