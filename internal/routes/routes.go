package routes

import (
	"github.com/arnold/goalmentor-api/internal/handlers"
	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func Setup(app *fiber.App, h *handlers.Handler) {
	app.Get("/health", h.Health)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/github", h.GitHubLogin)
	auth.Post("/logout", h.Logout)

	protected := api.Group("/", middleware.Protected(h.Secret()))

	protected.Get("/me", h.GetMe)

	goals := protected.Group("/goals")
	goals.Get("/", h.GetGoals)
	goals.Get("/demo", h.GetDemoGoals)
	goals.Post("/", h.CreateGoal)
	goals.Put("/:id", h.UpdateGoal)
	goals.Delete("/:id", h.DeleteGoal)
	goals.Post("/:id/tasks", h.CreateTask)

	tasks := protected.Group("/tasks")
	tasks.Put("/:id", h.UpdateTask)
	tasks.Post("/:id/toggle", h.ToggleTask)
	tasks.Delete("/:id", h.DeleteTask)

	chat := protected.Group("/chat")
	chat.Post("/", h.Chat)
	chat.Get("/history", h.ChatHistory)
	chat.Delete("/clear", h.ClearChat)

	// Device token for push notifications
	protected.Post("/device-token", h.RegisterDeviceToken)

	// WebSocket for real-time dashboard updates
	app.Use("/ws", handlers.WebSocketUpgrade(h.Secret()))
	app.Get("/ws/goals", websocket.New(h.Hub().HandleWebSocket))
}
