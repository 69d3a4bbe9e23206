package repository

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagRepository handles database operations for tags and their assignment to
// conversations.
type TagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Create creates a new tag
func (r *TagRepository) Create(ctx context.Context, req *domain.CreateTagRequest) (*domain.Tag, error) {
	tag := &domain.Tag{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Color: req.Color,
	}

	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	return tag, nil
}

// GetAll retrieves all tags
func (r *TagRepository) GetAll(ctx context.Context) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return tags, nil
}

// Delete removes a tag and all its conversation assignments.
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&domain.ConversationTag{}).Error; err != nil {
			return fmt.Errorf("failed to delete tag assignments: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&domain.Tag{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete tag: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("tag not found: %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// Attach assigns a tag to a conversation. Attaching an already-attached tag
// is a no-op.
func (r *TagRepository) Attach(ctx context.Context, conversationID, tagID string) error {
	assignment := &domain.ConversationTag{
		ConversationID: conversationID,
		TagID:          tagID,
	}
	err := r.db.WithContext(ctx).FirstOrCreate(assignment,
		"conversation_id = ? AND tag_id = ?", conversationID, tagID).Error
	if err != nil {
		return fmt.Errorf("failed to attach tag: %w", err)
	}
	return nil
}

// Detach removes a tag from a conversation.
func (r *TagRepository) Detach(ctx context.Context, conversationID, tagID string) error {
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND tag_id = ?", conversationID, tagID).
		Delete(&domain.ConversationTag{}).Error; err != nil {
		return fmt.Errorf("failed to detach tag: %w", err)
	}
	return nil
}

// GetByConversationID retrieves the tags attached to a conversation.
func (r *TagRepository) GetByConversationID(ctx context.Context, conversationID string) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_tags ON conversation_tags.tag_id = tags.id").
		Where("conversation_tags.conversation_id = ?", conversationID).
		Order("conversation_tags.created_at ASC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation tags: %w", err)
	}
	return tags, nil
}
