package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/insectica-ai/insectica-backend/internal/models"
)

// MemoryStore holds all data in memory. Used in tests and when
// USE_MEMORY_STORE=true.
type MemoryStore struct {
	conversations map[uint]*models.Conversation
	utterances    map[uint]*models.Utterance
	assistants    map[uint]*models.Assistant

	// Mutexes for thread safety
	convoMu     sync.RWMutex
	utteranceMu sync.RWMutex
	assistantMu sync.RWMutex

	// Counters for ID generation
	convoCounter     uint
	utteranceCounter uint
	assistantCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uint]*models.Conversation),
		utterances:    make(map[uint]*models.Utterance),
		assistants:    make(map[uint]*models.Assistant),
	}
}

// Conversation operations

func (m *MemoryStore) CreateConversation(sessionLabel string) (*models.Conversation, error) {
	m.convoMu.Lock()
	defer m.convoMu.Unlock()

	m.convoCounter++
	convo := &models.Conversation{
		SessionLabel: sessionLabel,
	}
	convo.ID = m.convoCounter
	convo.CreatedAt = time.Now()
	convo.UpdatedAt = convo.CreatedAt

	m.conversations[convo.ID] = convo
	return convo, nil
}

func (m *MemoryStore) GetConversation(id uint) (*models.Conversation, error) {
	m.convoMu.RLock()
	convo, exists := m.conversations[id]
	m.convoMu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}

	utterances, err := m.ListUtterances(id)
	if err != nil {
		return nil, err
	}

	out := *convo
	out.Utterances = make([]models.Utterance, 0, len(utterances))
	for _, u := range utterances {
		out.Utterances = append(out.Utterances, *u)
	}
	return &out, nil
}

func (m *MemoryStore) UpdateConversationIntent(id uint, intent *models.ConversationIntent) (*models.Conversation, error) {
	m.convoMu.Lock()
	defer m.convoMu.Unlock()

	convo, exists := m.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}

	applyIntent(convo, intent)
	convo.UpdatedAt = time.Now()

	out := *convo
	return &out, nil
}

// Utterance operations

func (m *MemoryStore) CreateUtterance(u *models.Utterance) (*models.Utterance, error) {
	m.convoMu.RLock()
	_, exists := m.conversations[u.ConversationID]
	m.convoMu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}

	m.utteranceMu.Lock()
	defer m.utteranceMu.Unlock()

	m.utteranceCounter++
	u.ID = m.utteranceCounter
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt

	stored := *u
	m.utterances[u.ID] = &stored
	return u, nil
}

func (m *MemoryStore) UpdateUtteranceText(id uint, text string) error {
	m.utteranceMu.Lock()
	defer m.utteranceMu.Unlock()

	u, exists := m.utterances[id]
	if !exists {
		return ErrNotFound
	}
	u.Text = text
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListUtterances(conversationID uint) ([]*models.Utterance, error) {
	m.utteranceMu.RLock()
	defer m.utteranceMu.RUnlock()

	var result []*models.Utterance
	for _, u := range m.utterances {
		if u.ConversationID == conversationID {
			cp := *u
			result = append(result, &cp)
		}
	}

	// Creation order is the canonical transcript order; IDs break wall-clock ties.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) ListAudioPaths() ([]string, error) {
	m.utteranceMu.RLock()
	defer m.utteranceMu.RUnlock()

	var paths []string
	for _, u := range m.utterances {
		if u.AudioPath != "" {
			paths = append(paths, u.AudioPath)
		}
	}
	return paths, nil
}

// Assistant operations

func (m *MemoryStore) CreateAssistant(a *models.Assistant) (*models.Assistant, error) {
	m.assistantMu.Lock()
	defer m.assistantMu.Unlock()

	for _, existing := range m.assistants {
		if existing.VapiAssistantID == a.VapiAssistantID {
			return nil, ErrDuplicate
		}
	}

	m.assistantCounter++
	a.ID = m.assistantCounter
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt

	stored := *a
	m.assistants[a.ID] = &stored
	return a, nil
}

func (m *MemoryStore) GetAssistantByVapiID(vapiAssistantID string) (*models.Assistant, error) {
	m.assistantMu.RLock()
	defer m.assistantMu.RUnlock()

	for _, a := range m.assistants {
		if a.VapiAssistantID == vapiAssistantID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
