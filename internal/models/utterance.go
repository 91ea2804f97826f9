package models

import "gorm.io/gorm"

// Utterance is one turn's audio plus its transcript. The user utterance is
// created with audio only and gets its text filled in after transcription;
// that is the only mutation an utterance ever sees.
type Utterance struct {
	gorm.Model
	ConversationID uint   `json:"conversation_id" gorm:"index;not null"`
	Role           string `json:"role" gorm:"not null"` // "user" or "assistant"
	Text           string `json:"text"`
	AudioPath      string `json:"-"`
	AudioURL       string `json:"audio_url"`
	DurationMs     int    `json:"duration_ms"`
}

// Role values
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
