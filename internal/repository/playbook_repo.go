package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaybookRepository handles database operations for topics, playbooks, their
// steps and their embedding records.
type PlaybookRepository struct {
	db *gorm.DB
}

// NewPlaybookRepository creates a new playbook repository
func NewPlaybookRepository(db *gorm.DB) *PlaybookRepository {
	return &PlaybookRepository{db: db}
}

// CreateTopic creates a new topic
func (r *PlaybookRepository) CreateTopic(ctx context.Context, name string) (*domain.Topic, error) {
	topic := &domain.Topic{
		ID:   uuid.New().String(),
		Name: name,
	}
	if err := r.db.WithContext(ctx).Create(topic).Error; err != nil {
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}
	return topic, nil
}

// GetTopics retrieves all topics
func (r *PlaybookRepository) GetTopics(ctx context.Context) ([]*domain.Topic, error) {
	var topics []*domain.Topic
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("failed to get topics: %w", err)
	}
	return topics, nil
}

// GetTopicByID retrieves a topic by ID. Returns nil, nil when not found.
func (r *PlaybookRepository) GetTopicByID(ctx context.Context, id string) (*domain.Topic, error) {
	var topic domain.Topic
	if err := r.db.WithContext(ctx).First(&topic, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &topic, nil
}

// validateSteps checks that step orders form the sequence 1..n.
func validateSteps(steps []domain.CreatePlaybookStepRequest) error {
	orders := make([]int, len(steps))
	for i, s := range steps {
		orders[i] = s.StepOrder
	}
	sort.Ints(orders)
	for i, o := range orders {
		if o != i+1 {
			return fmt.Errorf("step orders must be sequential starting at 1, got %v", orders)
		}
	}
	return nil
}

// CreatePlaybook creates a playbook together with its steps in one
// transaction.
func (r *PlaybookRepository) CreatePlaybook(ctx context.Context, req *domain.CreatePlaybookRequest) (*domain.Playbook, error) {
	if err := validateSteps(req.Steps); err != nil {
		return nil, err
	}

	playbook := &domain.Playbook{
		ID:          uuid.New().String(),
		TopicID:     req.TopicID,
		Name:        req.Name,
		Description: req.Description,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(playbook).Error; err != nil {
			return fmt.Errorf("failed to create playbook: %w", err)
		}
		for _, s := range req.Steps {
			step := &domain.PlaybookStep{
				ID:             uuid.New().String(),
				PlaybookID:     playbook.ID,
				StepOrder:      s.StepOrder,
				MessageContent: s.MessageContent,
				ContextHint:    s.ContextHint,
			}
			if err := tx.Create(step).Error; err != nil {
				return fmt.Errorf("failed to create playbook step: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return playbook, nil
}

// GetPlaybookByID retrieves a playbook by ID. Returns nil, nil when not found.
func (r *PlaybookRepository) GetPlaybookByID(ctx context.Context, id string) (*domain.Playbook, error) {
	var playbook domain.Playbook
	if err := r.db.WithContext(ctx).First(&playbook, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get playbook: %w", err)
	}
	return &playbook, nil
}

// GetPlaybooks retrieves playbooks, optionally filtered by topic.
func (r *PlaybookRepository) GetPlaybooks(ctx context.Context, topicID string) ([]*domain.Playbook, error) {
	var playbooks []*domain.Playbook
	query := r.db.WithContext(ctx)
	if topicID != "" {
		query = query.Where("topic_id = ?", topicID)
	}
	if err := query.Order("name ASC").Find(&playbooks).Error; err != nil {
		return nil, fmt.Errorf("failed to get playbooks: %w", err)
	}
	return playbooks, nil
}

// GetStepsByPlaybookID retrieves a playbook's steps in order.
func (r *PlaybookRepository) GetStepsByPlaybookID(ctx context.Context, playbookID string) ([]*domain.PlaybookStep, error) {
	var steps []*domain.PlaybookStep
	if err := r.db.WithContext(ctx).
		Where("playbook_id = ?", playbookID).
		Order("step_order ASC").
		Find(&steps).Error; err != nil {
		return nil, fmt.Errorf("failed to get playbook steps: %w", err)
	}
	return steps, nil
}

// ReplaceSteps swaps a playbook's steps for a new sequence in one transaction.
func (r *PlaybookRepository) ReplaceSteps(ctx context.Context, playbookID string, steps []domain.CreatePlaybookStepRequest) error {
	if err := validateSteps(steps); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playbook_id = ?", playbookID).Delete(&domain.PlaybookStep{}).Error; err != nil {
			return fmt.Errorf("failed to delete playbook steps: %w", err)
		}
		for _, s := range steps {
			step := &domain.PlaybookStep{
				ID:             uuid.New().String(),
				PlaybookID:     playbookID,
				StepOrder:      s.StepOrder,
				MessageContent: s.MessageContent,
				ContextHint:    s.ContextHint,
			}
			if err := tx.Create(step).Error; err != nil {
				return fmt.Errorf("failed to create playbook step: %w", err)
			}
		}
		return nil
	})
}

// DeletePlaybook removes a playbook, its steps and its embedding record.
func (r *PlaybookRepository) DeletePlaybook(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playbook_id = ?", id).Delete(&domain.PlaybookStep{}).Error; err != nil {
			return fmt.Errorf("failed to delete playbook steps: %w", err)
		}
		if err := tx.Where("playbook_id = ?", id).Delete(&domain.PlaybookEmbedding{}).Error; err != nil {
			return fmt.Errorf("failed to delete playbook embedding: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&domain.Playbook{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete playbook: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("playbook not found: %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// UpsertEmbedding records that a playbook was (re)indexed. One row per
// playbook.
func (r *PlaybookRepository) UpsertEmbedding(ctx context.Context, embedding *domain.PlaybookEmbedding) error {
	if embedding.ID == "" {
		embedding.ID = uuid.New().String()
	}
	if embedding.IndexedAt.IsZero() {
		embedding.IndexedAt = time.Now()
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "playbook_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"model", "dimensions", "checksum", "indexed_at"}),
	}).Create(embedding).Error
	if err != nil {
		return fmt.Errorf("failed to upsert playbook embedding: %w", err)
	}
	return nil
}

// GetEmbedding retrieves the embedding record for a playbook. Returns
// nil, nil when the playbook was never indexed.
func (r *PlaybookRepository) GetEmbedding(ctx context.Context, playbookID string) (*domain.PlaybookEmbedding, error) {
	var embedding domain.PlaybookEmbedding
	if err := r.db.WithContext(ctx).First(&embedding, "playbook_id = ?", playbookID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get playbook embedding: %w", err)
	}
	return &embedding, nil
}
