package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/foodloop/foodloop-api/internal/models"
)

// ChatRepository persists chats and their messages. AppendMessage writes the
// message and the chat preview inside one transaction so readers never see
// one without the other.
type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id uint) (models.Chat, error)
	GetByPair(ctx context.Context, participantA, participantB string) (models.Chat, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.Chat, error)
	AppendMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, chatID uint, before time.Time, limit int) ([]models.Message, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *chatRepository) GetByID(ctx context.Context, id uint) (models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (r *chatRepository) GetByPair(ctx context.Context, participantA, participantB string) (models.Chat, error) {
	a, b := models.OrderPair(participantA, participantB)

	var chat models.Chat
	err := r.db.WithContext(ctx).
		Where("participant_a = ? AND participant_b = ?", a, b).
		First(&chat).Error
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (r *chatRepository) ListByParticipant(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *models.Message) error {
	// The preview column is shorter than the message body.
	preview := message.Text
	if len(preview) > 512 {
		preview = preview[:512]
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		return tx.Model(&models.Chat{}).
			Where("id = ?", message.ChatID).
			Updates(map[string]interface{}{
				"last_message":    preview,
				"last_message_at": message.CreatedAt,
				"updated_at":      message.CreatedAt,
			}).Error
	})
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID uint, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.Message
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
