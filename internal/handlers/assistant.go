package handlers

import (
	"bufio"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/insectica-ai/insectica-backend/internal/models"
	"github.com/insectica-ai/insectica-backend/internal/services"
	"github.com/insectica-ai/insectica-backend/internal/storage"
)

// AssistantHandler proxies assistant registration and chat turns to the
// Vapi-style upstream.
type AssistantHandler struct {
	store storage.Store
	vapi  *services.VapiService
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(store storage.Store, vapi *services.VapiService) *AssistantHandler {
	return &AssistantHandler{store: store, vapi: vapi}
}

// RegisterAssistant creates the assistant upstream and persists a local
// mirror of it.
func (h *AssistantHandler) RegisterAssistant(c *fiber.Ctx) error {
	var req struct {
		Name          string `json:"name"`
		FirstMessage  string `json:"first_message"`
		SystemPrompt  string `json:"system_prompt"`
		ModelProvider string `json:"model_provider"`
		ModelName     string `json:"model_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.FirstMessage == "" || req.SystemPrompt == "" {
		return badRequest(c, "first_message and system_prompt are required")
	}
	if req.ModelProvider == "" {
		req.ModelProvider = "anthropic"
	}
	if req.ModelName == "" {
		req.ModelName = "claude-3-sonnet-20240229"
	}

	vapiID, err := h.vapi.CreateAssistant(c.UserContext(), services.AssistantParams{
		Name:          req.Name,
		FirstMessage:  req.FirstMessage,
		SystemPrompt:  req.SystemPrompt,
		ModelProvider: req.ModelProvider,
		ModelName:     req.ModelName,
	})
	if err != nil {
		log.Printf("❌ Assistant registration failed: %v", err)
		return errorJSON(c, err)
	}

	assistant, err := h.store.CreateAssistant(&models.Assistant{
		VapiAssistantID: vapiID,
		Name:            req.Name,
		FirstMessage:    req.FirstMessage,
		SystemPrompt:    req.SystemPrompt,
		ModelProvider:   req.ModelProvider,
		ModelName:       req.ModelName,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                assistant.ID,
		"vapi_assistant_id": assistant.VapiAssistantID,
		"name":              assistant.Name,
	})
}

// CreateChat runs one non-streaming chat turn.
func (h *AssistantHandler) CreateChat(c *fiber.Ctx) error {
	assistantID, input, ok := h.chatRequest(c)
	if !ok {
		return nil
	}

	answer, err := h.vapi.CreateChat(c.UserContext(), assistantID, input)
	if err != nil {
		log.Printf("❌ Chat turn failed for assistant %s: %v", assistantID, err)
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"assistant_id": assistantID,
		"answer":       answer,
	})
}

// StreamChat runs one streaming chat turn, passing upstream events through
// as a text/event-stream until either side closes.
func (h *AssistantHandler) StreamChat(c *fiber.Ctx) error {
	assistantID, input, ok := h.chatRequest(c)
	if !ok {
		return nil
	}

	// Open the upstream stream before committing to an event-stream
	// response, so pre-stream failures still map to proper statuses.
	stream, err := h.vapi.CreateChatStream(c.UserContext(), assistantID, input)
	if err != nil {
		log.Printf("❌ Chat stream failed for assistant %s: %v", assistantID, err)
		return errorJSON(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stream.Close()
		if err := services.RelayStream(w, stream); err != nil {
			// Consumer disconnected; the deferred Close drops the
			// upstream connection right away.
			log.Printf("⚠️  Chat stream relay ended early: %v", err)
		}
	})
	return nil
}

func (h *AssistantHandler) chatRequest(c *fiber.Ctx) (assistantID, input string, ok bool) {
	var req struct {
		AssistantID string `json:"assistant_id"`
		Input       string `json:"input"`
	}
	if err := c.BodyParser(&req); err != nil {
		_ = badRequest(c, "invalid request body")
		return "", "", false
	}
	if req.AssistantID == "" || req.Input == "" {
		_ = badRequest(c, "assistant_id and input are required")
		return "", "", false
	}
	return req.AssistantID, req.Input, true
}
