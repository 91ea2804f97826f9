package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

// Model choices for the speech provider. The transcribe fallback is the
// older, more conservative model.
const (
	STTModelPrimary  = "gpt-4o-mini-transcribe"
	STTModelFallback = "whisper-1"
	ChatModel        = "gpt-4o-mini"
	TTSModel         = "tts-1"
)

// ChatMessage is one {role, content} pair of the prompt context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SpeechService talks to the OpenAI-shaped speech/chat/tts upstream through
// one resilient client.
type SpeechService struct {
	client *upstream.Client
}

// NewSpeechService builds the service. Fails fast when the API key is
// missing.
func NewSpeechService(cfg upstream.Config) (*SpeechService, error) {
	client, err := upstream.New(cfg)
	if err != nil {
		return nil, err
	}
	return &SpeechService{client: client}, nil
}

// Transcribe runs speech-to-text over the recorded audio. The primary model
// is tried first; any failure falls back once to the conservative model.
// When both fail, the last classified error propagates.
func (s *SpeechService) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var lastErr error
	for _, model := range []string{STTModelPrimary, STTModelFallback} {
		fields := map[string]string{
			"model":           model,
			"language":        "en",
			"response_format": "json",
		}
		body, err := s.client.PostForm(ctx, "/audio/transcriptions", fields, "file", filename, audio)
		if err != nil {
			log.Printf("⚠️  Transcription with %s failed: %v", model, err)
			lastErr = err
			continue
		}

		var out struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			lastErr = fmt.Errorf("decode transcription response: %w", err)
			continue
		}
		return out.Text, nil
	}
	return "", lastErr
}

// ChatCompletion requests the next assistant reply over the full context.
func (s *SpeechService) ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	payload := map[string]any{
		"model":       ChatModel,
		"messages":    messages,
		"temperature": 0.3,
	}
	body, err := s.client.PostJSON(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Synthesize turns the assistant reply into mp3 bytes.
func (s *SpeechService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]any{
		"model":  TTSModel,
		"voice":  "alloy",
		"input":  text,
		"format": "mp3",
	}
	return s.client.PostJSON(ctx, "/audio/speech", payload)
}
