package models

import "gorm.io/gorm"

// Assistant mirrors an assistant registered with the Vapi upstream. The
// upstream-issued id is immutable and unique; rows are never updated after
// creation.
type Assistant struct {
	gorm.Model
	VapiAssistantID string `json:"vapi_assistant_id" gorm:"uniqueIndex;not null"`
	Name            string `json:"name"`
	FirstMessage    string `json:"first_message"`
	SystemPrompt    string `json:"system_prompt"`
	ModelProvider   string `json:"model_provider" gorm:"default:anthropic"`
	ModelName       string `json:"model_name" gorm:"default:claude-3-sonnet-20240229"`
}
