package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

func newTestVapi(t *testing.T, handler http.HandlerFunc) *VapiService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	vapi, err := NewVapiService(upstream.Config{
		BaseURL:       server.URL,
		APIKey:        "test-key",
		MaxRetries:    1,
		BackoffFactor: 0.001,
	}, "/chat/stream")
	require.NoError(t, err)
	return vapi
}

func TestCreateAssistantSendsVapiShape(t *testing.T) {
	vapi := newTestVapi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assistant", r.URL.Path)

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Front Desk", payload["name"])
		assert.Equal(t, "Hello!", payload["firstMessage"])
		assert.Equal(t, "assistant-speaks-first", payload["firstMessageMode"])

		model, _ := payload["model"].(map[string]any)
		assert.Equal(t, "anthropic", model["provider"])
		messages, _ := model["messages"].([]any)
		if assert.Len(t, messages, 1) {
			system, _ := messages[0].(map[string]any)
			assert.Equal(t, "system", system["role"])
			assert.Equal(t, "be helpful", system["content"])
		}

		fmt.Fprint(w, `{"id":"va_123","orgId":"org_1"}`)
	})

	id, err := vapi.CreateAssistant(context.Background(), AssistantParams{
		Name:          "Front Desk",
		FirstMessage:  "Hello!",
		SystemPrompt:  "be helpful",
		ModelProvider: "anthropic",
		ModelName:     "claude-3-sonnet-20240229",
	})
	require.NoError(t, err)
	assert.Equal(t, "va_123", id)
}

func TestCreateChatExtractsAnswer(t *testing.T) {
	vapi := newTestVapi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		fmt.Fprint(w, `{"output":[{"role":"user","content":"hi"},{"role":"assistant","content":"Hello there"}]}`)
	})

	answer, err := vapi.CreateChat(context.Background(), "va_123", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", answer)
}

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"output array", `{"output":[{"role":"assistant","content":"yes"}]}`, "yes"},
		{"messages array", `{"messages":[{"role":"model","content":"from model"}]}`, "from model"},
		{"skips non-assistant roles", `{"output":[{"role":"user","content":"hi"},{"role":"assistant","content":"answer"}]}`, "answer"},
		{"output preferred over messages", `{"output":[{"role":"assistant","content":"a"}],"messages":[{"role":"assistant","content":"b"}]}`, "a"},
		{"no assistant entry", `{"output":[{"role":"user","content":"hi"}]}`, ""},
		{"empty body", `{}`, ""},
		{"not json", `nope`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAnswer([]byte(tt.body)))
		})
	}
}
