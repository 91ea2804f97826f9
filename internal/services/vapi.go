package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

// VapiService proxies assistant-creation and chat requests to the Vapi-style
// upstream. Some workspaces stream from /chat directly; the stream path is
// configurable for that reason.
type VapiService struct {
	client         *upstream.Client
	chatStreamPath string
}

// NewVapiService builds the service. Fails fast when the API key is missing.
func NewVapiService(cfg upstream.Config, chatStreamPath string) (*VapiService, error) {
	client, err := upstream.New(cfg)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(chatStreamPath, "/") {
		chatStreamPath = "/" + chatStreamPath
	}
	return &VapiService{client: client, chatStreamPath: chatStreamPath}, nil
}

// AssistantParams describes a new upstream assistant.
type AssistantParams struct {
	Name          string
	FirstMessage  string
	SystemPrompt  string
	ModelProvider string
	ModelName     string
}

// CreateAssistant registers an assistant upstream and returns its assigned id.
func (v *VapiService) CreateAssistant(ctx context.Context, p AssistantParams) (string, error) {
	payload := map[string]any{
		"name":             p.Name,
		"firstMessage":     p.FirstMessage,
		"firstMessageMode": "assistant-speaks-first",
		"model": map[string]any{
			"provider": p.ModelProvider,
			"model":    p.ModelName,
			"messages": []map[string]string{
				{"role": "system", "content": p.SystemPrompt},
			},
		},
	}
	body, err := v.client.PostJSON(ctx, "/assistant", payload)
	if err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode assistant response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("assistant response has no id")
	}
	return out.ID, nil
}

// CreateChat runs one non-streaming chat turn and returns the extracted
// assistant answer.
func (v *VapiService) CreateChat(ctx context.Context, assistantID, input string) (string, error) {
	payload := map[string]any{"assistantId": assistantID, "input": input}
	body, err := v.client.PostJSON(ctx, "/chat", payload)
	if err != nil {
		return "", err
	}
	return ExtractAnswer(body), nil
}

// CreateChatStream opens a streamed chat turn. The returned stream (and its
// connection) belongs to the caller.
func (v *VapiService) CreateChatStream(ctx context.Context, assistantID, input string) (*upstream.Stream, error) {
	payload := map[string]any{"assistantId": assistantID, "input": input}
	return v.client.PostJSONStream(ctx, v.chatStreamPath, payload)
}

type vapiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractAnswer picks the first assistant/model message out of a
// non-streaming chat response. Returns "" when no such message exists.
func ExtractAnswer(body []byte) string {
	var out struct {
		Output   []vapiMessage `json:"output"`
		Messages []vapiMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}

	entries := out.Output
	if len(entries) == 0 {
		entries = out.Messages
	}
	for _, m := range entries {
		if m.Role == "assistant" || m.Role == "model" {
			return m.Content
		}
	}
	return ""
}
