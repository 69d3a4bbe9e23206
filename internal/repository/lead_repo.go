package repository

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadRepository handles database operations for leads.
type LeadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create creates a new lead
func (r *LeadRepository) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	if req.MaturityScore < 0 || req.MaturityScore > 100 {
		return nil, fmt.Errorf("maturity score must be between 0 and 100, got %d", req.MaturityScore)
	}

	lead := &domain.Lead{
		ID:            uuid.New().String(),
		PhoneNumber:   req.PhoneNumber,
		Name:          req.Name,
		Email:         req.Email,
		MaturityScore: req.MaturityScore,
		CustomFields:  req.CustomFields,
	}

	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	return lead, nil
}

// GetByID retrieves a lead by ID. Soft-deleted leads are included here on
// purpose: audit correlation needs them resolvable by id.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).Unscoped().First(&lead, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// GetByPhoneNumber retrieves a non-deleted lead by phone number. Returns
// nil, nil when not found.
func (r *LeadRepository) GetByPhoneNumber(ctx context.Context, phone string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead by phone number: %w", err)
	}
	return &lead, nil
}

// FindOrCreateByPhoneNumber returns the lead for a phone number, creating it
// on first inbound contact.
func (r *LeadRepository) FindOrCreateByPhoneNumber(ctx context.Context, phone, name string) (*domain.Lead, error) {
	lead, err := r.GetByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, err
	}
	if lead != nil {
		return lead, nil
	}

	return r.Create(ctx, &domain.CreateLeadRequest{
		PhoneNumber: phone,
		Name:        name,
	})
}

// GetAll retrieves leads, excluding soft-deleted ones. Optional filters:
// assigned operator and minimum maturity score.
func (r *LeadRepository) GetAll(ctx context.Context, operatorID string, minScore int) ([]*domain.Lead, error) {
	var leads []*domain.Lead
	query := r.db.WithContext(ctx)

	if operatorID != "" {
		query = query.Where("assigned_operator_id = ?", operatorID)
	}
	if minScore > 0 {
		query = query.Where("maturity_score >= ?", minScore)
	}

	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("failed to get leads: %w", err)
	}

	return leads, nil
}

// Update updates a lead
func (r *LeadRepository) Update(ctx context.Context, id string, req *domain.UpdateLeadRequest) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("lead not found: %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.MaturityScore != nil {
		if *req.MaturityScore < 0 || *req.MaturityScore > 100 {
			return nil, fmt.Errorf("maturity score must be between 0 and 100, got %d", *req.MaturityScore)
		}
		updates["maturity_score"] = *req.MaturityScore
	}
	if req.AssignedOperatorID != nil {
		updates["assigned_operator_id"] = *req.AssignedOperatorID
	}
	if req.CustomFields != nil {
		updates["custom_fields"] = req.CustomFields
	}

	if len(updates) == 0 {
		return &lead, nil
	}

	if err := r.db.WithContext(ctx).Model(&lead).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	return &lead, nil
}

// Delete soft deletes a lead. The row stays retrievable via GetByID.
func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Lead{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lead not found: %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
