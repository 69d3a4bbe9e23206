package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository handles database operations for conversations.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation. New conversations always start in
// ACTIVE_BOT.
func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.Status == "" {
		conversation.Status = domain.StatusActiveBot
	}
	if conversation.LastMessageAt.IsZero() {
		conversation.LastMessageAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID. Returns nil, nil when not found.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conversation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

// FindOpenByLeadID returns the lead's most recent non-terminal conversation,
// or nil, nil if every conversation for the lead is completed or closed.
func (r *ConversationRepository) FindOpenByLeadID(ctx context.Context, leadID string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.WithContext(ctx).
		Where("lead_id = ? AND status NOT IN ?", leadID,
			[]domain.ConversationStatus{domain.StatusCompleted, domain.StatusClosed}).
		Order("created_at DESC").
		First(&conversation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open conversation: %w", err)
	}
	return &conversation, nil
}

// ListByStatus returns conversations in the given status, newest activity first.
func (r *ConversationRepository) ListByStatus(ctx context.Context, status domain.ConversationStatus, limit, offset int) ([]*domain.Conversation, error) {
	var conversations []*domain.Conversation
	query := r.db.WithContext(ctx).Where("status = ?", status).Order("last_message_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// UpdateStatus performs the conditional status update: the row is changed
// only if it still holds the expected status. Returns false when the guard
// failed, which is how concurrent claim attempts lose the race. When
// operatorID is non-nil the assignment is written in the same UPDATE so it
// can never diverge from the status flip.
func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.ConversationStatus, operatorID *string) (bool, error) {
	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now(),
	}
	if operatorID != nil {
		updates["assigned_operator_id"] = *operatorID
	}

	result := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update conversation status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListStalePending returns PENDING_HANDOFF conversations whose last message
// is older than the cutoff and that have not been re-engaged yet.
func (r *ConversationRepository) ListStalePending(ctx context.Context, olderThan time.Time) ([]*domain.Conversation, error) {
	var conversations []*domain.Conversation
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_message_at < ? AND reengaged_at IS NULL",
			domain.StatusPendingHandoff, olderThan).
		Order("last_message_at ASC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale conversations: %w", err)
	}
	return conversations, nil
}

// MarkReengaged stamps the re-engagement marker, guarded on the conversation
// still being stale PENDING_HANDOFF. Returns false if a reply or another
// sweep got there first.
func (r *ConversationRepository) MarkReengaged(ctx context.Context, id string, olderThan time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ? AND status = ? AND last_message_at < ? AND reengaged_at IS NULL",
			id, domain.StatusPendingHandoff, olderThan).
		Update("reengaged_at", time.Now())
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark conversation re-engaged: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClearReengaged removes the re-engagement marker. Used to roll the marker
// back when the re-engagement send fails, so the next sweep retries the
// conversation.
func (r *ConversationRepository) ClearReengaged(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).Update("reengaged_at", nil).Error; err != nil {
		return fmt.Errorf("failed to clear re-engagement marker: %w", err)
	}
	return nil
}

// TouchLastMessage records message activity on the conversation and clears
// the re-engagement marker, so a lead reply makes the conversation eligible
// for future sweeps again.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	updates := map[string]interface{}{
		"last_message_at": at,
		"reengaged_at":    nil,
	}
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// Update applies a partial update to urgency and notes.
func (r *ConversationRepository) Update(ctx context.Context, id string, req *domain.UpdateConversationRequest) (*domain.Conversation, error) {
	updates := make(map[string]interface{})
	if req.IsUrgent != nil {
		updates["is_urgent"] = *req.IsUrgent
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).
			Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update conversation: %w", err)
		}
	}

	return r.Get(ctx, id)
}
