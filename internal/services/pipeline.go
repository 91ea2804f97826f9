package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/insectica-ai/insectica-backend/internal/media"
	"github.com/insectica-ai/insectica-backend/internal/models"
	"github.com/insectica-ai/insectica-backend/internal/storage"
)

// TurnResult is what one completed turn hands back to the caller.
type TurnResult struct {
	AssistantText     string            `json:"assistant_text"`
	AssistantAudioURL string            `json:"assistant_audio_url"`
	Utterance         *models.Utterance `json:"utterance"`
}

// PipelineService drives one conversational turn: persist inbound audio,
// transcribe, build the prompt context, complete, synthesize, persist the
// assistant utterance. Turns on the same conversation are serialized behind
// a per-conversation lock so utterance order matches submission order.
type PipelineService struct {
	store        storage.Store
	speech       *SpeechService
	media        *media.Storage
	systemPrompt string

	mu         sync.Mutex
	convoLocks map[uint]*convoLock
}

// convoLock is one conversation's turn lock plus a waiter count, so the
// entry can be dropped once nobody holds or wants it.
type convoLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipelineService creates the turn pipeline.
func NewPipelineService(store storage.Store, speech *SpeechService, blobs *media.Storage, systemPrompt string) *PipelineService {
	return &PipelineService{
		store:        store,
		speech:       speech,
		media:        blobs,
		systemPrompt: systemPrompt,
		convoLocks:   make(map[uint]*convoLock),
	}
}

func (p *PipelineService) lockConversation(id uint) func() {
	p.mu.Lock()
	lock, ok := p.convoLocks[id]
	if !ok {
		lock = &convoLock{}
		p.convoLocks[id] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		p.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(p.convoLocks, id)
		}
		p.mu.Unlock()
	}
}

// ProcessTurn runs one user-audio-in, assistant-audio-out cycle.
//
// Failure policy is atomic past transcription: when chat or synthesis fails,
// no assistant utterance is persisted and the classified error surfaces. The
// user utterance always survives — it is created, with its raw audio, before
// transcription is even attempted, so a failed turn still leaves an audit
// trail.
func (p *PipelineService) ProcessTurn(ctx context.Context, conversationID uint, audio []byte, durationMs int) (*TurnResult, error) {
	unlock := p.lockConversation(conversationID)
	defer unlock()

	if _, err := p.store.GetConversation(conversationID); err != nil {
		return nil, err
	}

	// 1) Persist the inbound audio first.
	path, url, err := p.media.Save("user", ".webm", audio)
	if err != nil {
		return nil, err
	}
	userUttr, err := p.store.CreateUtterance(&models.Utterance{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		AudioPath:      path,
		AudioURL:       url,
		DurationMs:     durationMs,
	})
	if err != nil {
		return nil, err
	}

	// 2) Speech-to-text, primary then fallback model.
	text, err := p.speech.Transcribe(ctx, filepath.Base(path), audio)
	if err != nil {
		// The user utterance stays behind with empty text.
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	// 3) The one allowed post-creation mutation.
	if err := p.store.UpdateUtteranceText(userUttr.ID, text); err != nil {
		return nil, err
	}

	// 4) Prompt context: persona plus the full transcript in creation
	// order, the fresh user turn included.
	utterances, err := p.store.ListUtterances(conversationID)
	if err != nil {
		return nil, err
	}
	messages := BuildContext(p.systemPrompt, utterances)

	// 5) Next assistant reply.
	assistantText, err := p.speech.ChatCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}

	// 6) Synthesis. A failure here fails the whole turn; text and audio
	// are persisted together or not at all.
	audioBytes, err := p.speech.Synthesize(ctx, assistantText)
	if err != nil {
		return nil, err
	}

	// 7) Persist the assistant utterance.
	assistantPath, assistantURL, err := p.media.Save("assistant", ".mp3", audioBytes)
	if err != nil {
		return nil, err
	}
	assistantUttr, err := p.store.CreateUtterance(&models.Utterance{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Text:           assistantText,
		AudioPath:      assistantPath,
		AudioURL:       assistantURL,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎙️  Turn completed for conversation %d (%d ms in, %d bytes out)", conversationID, durationMs, len(audioBytes))

	return &TurnResult{
		AssistantText:     assistantText,
		AssistantAudioURL: assistantURL,
		Utterance:         assistantUttr,
	}, nil
}

// BuildContext maps the transcript into {role, content} pairs behind the
// fixed system prompt. Untranscribed utterances contribute an empty string,
// never a dropped turn, so role alignment is preserved.
func BuildContext(systemPrompt string, utterances []*models.Utterance) []ChatMessage {
	messages := make([]ChatMessage, 0, len(utterances)+1)
	messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	for _, u := range utterances {
		messages = append(messages, ChatMessage{Role: u.Role, Content: u.Text})
	}
	return messages
}
