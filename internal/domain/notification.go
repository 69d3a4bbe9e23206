package domain

import "time"

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotificationHandoffRequested NotificationType = "HANDOFF_REQUESTED"
	NotificationEscalation       NotificationType = "ESCALATION"
	NotificationAssignment       NotificationType = "ASSIGNMENT"
	NotificationSystem           NotificationType = "SYSTEM"
)

// Notification is an operator-facing event record. The only field that ever
// mutates after creation is Read.
type Notification struct {
	ID        string           `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string           `json:"user_id" gorm:"type:uuid;not null;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	Title     string           `json:"title" gorm:"type:varchar(255)"`
	Message   string           `json:"message" gorm:"type:text"`
	Read      bool             `json:"read" gorm:"default:false"`
	CreatedAt time.Time        `json:"created_at" gorm:"autoCreateTime;index"`
}

func (Notification) TableName() string {
	return "notifications"
}

// AuditLog records one observed change to an entity's tracked value.
type AuditLog struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	Actor      string    `json:"actor" gorm:"type:varchar(255);not null"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(64);not null;index:idx_audit_entity"`
	EntityID   string    `json:"entity_id" gorm:"type:varchar(64);not null;index:idx_audit_entity"`
	OldValue   string    `json:"old_value" gorm:"type:text"`
	NewValue   string    `json:"new_value" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
