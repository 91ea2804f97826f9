package handlers

import (
	"io"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/insectica-ai/insectica-backend/internal/models"
	"github.com/insectica-ai/insectica-backend/internal/services"
	"github.com/insectica-ai/insectica-backend/internal/storage"
)

// ConversationHandler serves the voice-conversation surface.
type ConversationHandler struct {
	store    storage.Store
	pipeline *services.PipelineService
	booking  *services.BookingPolicy
	notify   *services.NotifyService
}

// NewConversationHandler creates a new conversation handler. notify may be
// nil when alerting is not configured.
func NewConversationHandler(store storage.Store, pipeline *services.PipelineService, booking *services.BookingPolicy, notify *services.NotifyService) *ConversationHandler {
	return &ConversationHandler{
		store:    store,
		pipeline: pipeline,
		booking:  booking,
		notify:   notify,
	}
}

// StartConversation opens a new session.
func (h *ConversationHandler) StartConversation(c *fiber.Ctx) error {
	var req struct {
		SessionLabel string `json:"session_label"`
	}
	// An empty body is fine; the label just defaults.
	_ = c.BodyParser(&req)
	if req.SessionLabel == "" {
		req.SessionLabel = "web-embed"
	}

	convo, err := h.store.CreateConversation(req.SessionLabel)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation_id": convo.ID,
	})
}

// IngestAudio accepts one recorded utterance and runs the full turn
// pipeline over it.
func (h *ConversationHandler) IngestAudio(c *fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return badRequest(c, "audio required")
	}
	durationMs, _ := strconv.Atoi(c.FormValue("duration_ms", "0"))

	f, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "unreadable audio upload")
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, "unreadable audio upload")
	}
	if len(audio) == 0 {
		return badRequest(c, "audio required")
	}

	result, err := h.pipeline.ProcessTurn(c.UserContext(), id, audio, durationMs)
	if err != nil {
		log.Printf("❌ Turn failed for conversation %d: %v", id, err)
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"assistant_text":      result.AssistantText,
		"assistant_audio_url": result.AssistantAudioURL,
		"utterance":           result.Utterance,
	})
}

// Summary returns the conversation with its full ordered history.
func (h *ConversationHandler) Summary(c *fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}

	convo, err := h.store.GetConversation(id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(convo)
}

// UpdateIntent applies a partial booking-intent update. A caller-supplied
// booking time must land inside the business-hours window.
func (h *ConversationHandler) UpdateIntent(c *fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}

	var intent models.ConversationIntent
	if err := c.BodyParser(&intent); err != nil {
		return badRequest(c, "invalid request body")
	}
	if intent.CustomerType != nil && *intent.CustomerType != models.CustomerTypeResidence && *intent.CustomerType != models.CustomerTypeBusiness {
		return badRequest(c, "customer_type must be residence or business")
	}
	if intent.BookingTime != nil && !h.booking.InsideWindow(*intent.BookingTime) {
		return badRequest(c, "booking time is outside business hours")
	}

	before, err := h.store.GetConversation(id)
	if err != nil {
		return errorJSON(c, err)
	}

	convo, err := h.store.UpdateConversationIntent(id, &intent)
	if err != nil {
		return errorJSON(c, err)
	}

	if h.notify != nil && !before.Escalated && convo.Escalated {
		go func() {
			if err := h.notify.SendEscalationAlert(convo); err != nil {
				log.Printf("⚠️  Escalation alert failed for conversation %d: %v", convo.ID, err)
			}
		}()
	}

	return c.JSON(convo)
}

// Slots returns the next bookable time slots.
func (h *ConversationHandler) Slots(c *fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	if _, err := h.store.GetConversation(id); err != nil {
		return errorJSON(c, err)
	}

	count := c.QueryInt("count", 4)
	if count < 1 || count > 48 {
		return badRequest(c, "count must be between 1 and 48")
	}

	slots := h.booking.NextSlots(time.Now(), count)
	formatted := make([]string, 0, len(slots))
	for _, s := range slots {
		formatted = append(formatted, s.Format(time.RFC3339))
	}

	return c.JSON(fiber.Map{
		"slots": formatted,
		"count": len(formatted),
	})
}

func conversationID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func badRequest(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": detail,
	})
}
