package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/insectica-ai/insectica-backend/internal/handlers"
	"github.com/insectica-ai/insectica-backend/internal/services"
	"github.com/insectica-ai/insectica-backend/internal/storage"
)

// Deps bundles what the route handlers need.
type Deps struct {
	Store    storage.Store
	Pipeline *services.PipelineService
	Booking  *services.BookingPolicy
	Vapi     *services.VapiService
	Notify   *services.NotifyService

	MediaRoot    string
	MediaBaseURL string
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Deps) {
	conversationHandler := handlers.NewConversationHandler(deps.Store, deps.Pipeline, deps.Booking, deps.Notify)
	assistantHandler := handlers.NewAssistantHandler(deps.Store, deps.Vapi)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to the Insectica voice backend!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":        "/health",
				"conversations": "/api/conversations",
				"assistants":    "/api/assistants",
				"chats":         "/api/chats",
				"media":         deps.MediaBaseURL,
			},
		})
	})

	app.Get("/health", handlers.Health)

	// Synthesized and recorded audio artifacts
	app.Static(deps.MediaBaseURL, deps.MediaRoot)

	api := app.Group("/api")

	// Voice conversation routes
	conversations := api.Group("/conversations")
	conversations.Post("/", conversationHandler.StartConversation)
	conversations.Post("/:id/ingest_audio", conversationHandler.IngestAudio)
	conversations.Get("/:id/summary", conversationHandler.Summary)
	conversations.Get("/:id/slots", conversationHandler.Slots)
	conversations.Patch("/:id", conversationHandler.UpdateIntent)

	// Vapi proxy routes
	api.Post("/assistants", assistantHandler.RegisterAssistant)
	api.Post("/chats", assistantHandler.CreateChat)
	api.Post("/chats/stream", assistantHandler.StreamChat)
}
