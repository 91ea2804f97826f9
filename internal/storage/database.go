package storage

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/insectica-ai/insectica-backend/internal/models"
)

// DatabaseStore persists everything through GORM/Postgres.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Conversation operations

func (d *DatabaseStore) CreateConversation(sessionLabel string) (*models.Conversation, error) {
	convo := &models.Conversation{SessionLabel: sessionLabel}
	if err := d.db.Create(convo).Error; err != nil {
		return nil, err
	}
	return convo, nil
}

func (d *DatabaseStore) GetConversation(id uint) (*models.Conversation, error) {
	var convo models.Conversation
	err := d.db.
		Preload("Utterances", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&convo, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &convo, nil
}

func (d *DatabaseStore) UpdateConversationIntent(id uint, intent *models.ConversationIntent) (*models.Conversation, error) {
	var convo models.Conversation
	if err := d.db.First(&convo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	applyIntent(&convo, intent)
	if err := d.db.Save(&convo).Error; err != nil {
		return nil, err
	}
	return &convo, nil
}

// Utterance operations

func (d *DatabaseStore) CreateUtterance(u *models.Utterance) (*models.Utterance, error) {
	var count int64
	if err := d.db.Model(&models.Conversation{}).Where("id = ?", u.ConversationID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	if err := d.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (d *DatabaseStore) UpdateUtteranceText(id uint, text string) error {
	result := d.db.Model(&models.Utterance{}).Where("id = ?", id).Update("text", text)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DatabaseStore) ListUtterances(conversationID uint) ([]*models.Utterance, error) {
	var utterances []*models.Utterance
	err := d.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&utterances).Error
	if err != nil {
		return nil, err
	}
	return utterances, nil
}

func (d *DatabaseStore) ListAudioPaths() ([]string, error) {
	var paths []string
	err := d.db.Model(&models.Utterance{}).
		Where("audio_path <> ''").
		Pluck("audio_path", &paths).Error
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Assistant operations

func (d *DatabaseStore) CreateAssistant(a *models.Assistant) (*models.Assistant, error) {
	if err := d.db.Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return a, nil
}

func (d *DatabaseStore) GetAssistantByVapiID(vapiAssistantID string) (*models.Assistant, error) {
	var assistant models.Assistant
	err := d.db.Where("vapi_assistant_id = ?", vapiAssistantID).First(&assistant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &assistant, nil
}
