package storage

import (
	"errors"

	"github.com/insectica-ai/insectica-backend/internal/models"
)

// ErrNotFound is returned for unknown conversations, utterances and
// assistants. Handlers map it to a 404.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated
// (one Vapi assistant id, one local mirror).
var ErrDuplicate = errors.New("already exists")

// Store defines the durable conversation/utterance/assistant operations the
// pipeline needs. Single-row create/update is atomic in both implementations;
// no cross-row transactions are required.
type Store interface {
	// Conversation operations
	CreateConversation(sessionLabel string) (*models.Conversation, error)
	GetConversation(id uint) (*models.Conversation, error)
	UpdateConversationIntent(id uint, intent *models.ConversationIntent) (*models.Conversation, error)

	// Utterance operations
	CreateUtterance(u *models.Utterance) (*models.Utterance, error)
	UpdateUtteranceText(id uint, text string) error
	ListUtterances(conversationID uint) ([]*models.Utterance, error)
	ListAudioPaths() ([]string, error)

	// Assistant operations
	CreateAssistant(a *models.Assistant) (*models.Assistant, error)
	GetAssistantByVapiID(vapiAssistantID string) (*models.Assistant, error)
}

// applyIntent merges a partial intent update into a conversation. The
// escalated flag only latches on: a request carrying escalated=false against
// an escalated conversation leaves it escalated.
func applyIntent(convo *models.Conversation, intent *models.ConversationIntent) {
	if intent.CustomerName != nil {
		convo.CustomerName = *intent.CustomerName
	}
	if intent.Phone != nil {
		convo.Phone = *intent.Phone
	}
	if intent.Address != nil {
		convo.Address = *intent.Address
	}
	if intent.PostalCode != nil {
		convo.PostalCode = *intent.PostalCode
	}
	if intent.City != nil {
		convo.City = *intent.City
	}
	if intent.CustomerType != nil {
		convo.CustomerType = *intent.CustomerType
	}
	if intent.BedroomCount != nil {
		convo.BedroomCount = *intent.BedroomCount
	}
	if intent.PestType != nil {
		convo.PestType = *intent.PestType
	}
	if intent.Notes != nil {
		convo.Notes = *intent.Notes
	}
	if intent.BookingTime != nil {
		convo.BookingTime = intent.BookingTime
	}
	if intent.Escalated != nil && *intent.Escalated {
		convo.Escalated = true
	}
}
