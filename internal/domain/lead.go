package domain

import (
	"time"

	"gorm.io/gorm"
)

// Lead is a prospective customer tracked through the pipeline. Leads are
// created on first inbound contact and soft-deleted on removal so the audit
// trail stays resolvable.
type Lead struct {
	ID                 string         `json:"id" gorm:"type:uuid;primaryKey"`
	PhoneNumber        string         `json:"phone_number" gorm:"type:varchar(32);uniqueIndex:uni_leads_phone_number;not null"`
	Name               string         `json:"name" gorm:"type:varchar(255)"`
	Email              *string        `json:"email,omitempty" gorm:"type:varchar(255)"`
	MaturityScore      int            `json:"maturity_score" gorm:"default:0"`
	AssignedOperatorID *string        `json:"assigned_operator_id,omitempty" gorm:"type:uuid"`
	CustomFields       JSONB          `json:"custom_fields,omitempty" gorm:"type:jsonb"`
	CreatedAt          time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt          gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (Lead) TableName() string {
	return "leads"
}

// CreateLeadRequest represents the request to create a new lead
type CreateLeadRequest struct {
	PhoneNumber   string  `json:"phone_number" validate:"required"`
	Name          string  `json:"name"`
	Email         *string `json:"email,omitempty"`
	MaturityScore int     `json:"maturity_score"`
	CustomFields  JSONB   `json:"custom_fields,omitempty"`
}

// UpdateLeadRequest represents the request to update a lead
type UpdateLeadRequest struct {
	Name               *string `json:"name,omitempty"`
	Email              *string `json:"email,omitempty"`
	MaturityScore      *int    `json:"maturity_score,omitempty"`
	AssignedOperatorID *string `json:"assigned_operator_id,omitempty"`
	CustomFields       JSONB   `json:"custom_fields,omitempty"`
}
