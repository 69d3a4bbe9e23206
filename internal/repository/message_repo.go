package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for conversation messages.
// Messages are append-only: there is deliberately no update or delete here.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message to a conversation.
func (r *MessageRepository) Create(ctx context.Context, message *domain.ConversationMessage) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create conversation message: %w", err)
	}
	return nil
}

// GetByConversationID retrieves all messages for a conversation, oldest first.
func (r *MessageRepository) GetByConversationID(ctx context.Context, conversationID string) ([]*domain.ConversationMessage, error) {
	var messages []*domain.ConversationMessage
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversation messages: %w", err)
	}
	return messages, nil
}

// GetRecent retrieves the newest limit messages for a conversation, returned
// oldest first so callers can concatenate them into a context window.
func (r *MessageRepository) GetRecent(ctx context.Context, conversationID string, limit int) ([]*domain.ConversationMessage, error) {
	var messages []*domain.ConversationMessage
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}

	// reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
