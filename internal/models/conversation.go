package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation is one voice session with the assistant. Booking-intent
// fields are filled in incrementally as the caller volunteers details.
type Conversation struct {
	gorm.Model
	SessionLabel string `json:"session_label"`

	// Booking intent
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	PostalCode   string     `json:"postal_code"`
	City         string     `json:"city"`
	CustomerType string     `json:"customer_type"` // "residence" or "business"
	BedroomCount int        `json:"bedroom_count"`
	PestType     string     `json:"pest_type"`
	Notes        string     `json:"notes"`
	BookingTime  *time.Time `json:"booking_time"`

	// Escalated latches on: once a conversation is handed to a human it
	// must never silently drop back to the bot.
	Escalated bool `json:"escalated"`

	Utterances []Utterance `json:"utterances" gorm:"constraint:OnDelete:CASCADE"`
}

// CustomerType values
const (
	CustomerTypeResidence = "residence"
	CustomerTypeBusiness  = "business"
)

// ConversationIntent carries a partial booking-intent update. Nil fields
// are left untouched.
type ConversationIntent struct {
	CustomerName *string    `json:"customer_name"`
	Phone        *string    `json:"phone"`
	Address      *string    `json:"address"`
	PostalCode   *string    `json:"postal_code"`
	City         *string    `json:"city"`
	CustomerType *string    `json:"customer_type"`
	BedroomCount *int       `json:"bedroom_count"`
	PestType     *string    `json:"pest_type"`
	Notes        *string    `json:"notes"`
	BookingTime  *time.Time `json:"booking_time"`
	Escalated    *bool      `json:"escalated"`
}
