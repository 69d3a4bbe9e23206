package repository

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperatorRepository handles database operations for operators.
type OperatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create creates a new operator
func (r *OperatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	if operator.ID == "" {
		operator.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// GetByID retrieves an operator by ID
func (r *OperatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	var operator domain.Operator
	if err := r.db.WithContext(ctx).First(&operator, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return &operator, nil
}

// GetByEmail retrieves an operator by email. Returns nil, nil when not found.
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var operator domain.Operator
	if err := r.db.WithContext(ctx).First(&operator, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get operator by email: %w", err)
	}
	return &operator, nil
}

// GetActive retrieves all active operators.
func (r *OperatorRepository) GetActive(ctx context.Context) ([]*domain.Operator, error) {
	var operators []*domain.Operator
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&operators).Error; err != nil {
		return nil, fmt.Errorf("failed to get active operators: %w", err)
	}
	return operators, nil
}
