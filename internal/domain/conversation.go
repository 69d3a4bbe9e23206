package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusActiveBot      ConversationStatus = "ACTIVE_BOT"
	StatusPendingHandoff ConversationStatus = "PENDING_HANDOFF"
	StatusActiveHuman    ConversationStatus = "ACTIVE_HUMAN"
	StatusCompleted      ConversationStatus = "COMPLETED"
	StatusEscalated      ConversationStatus = "ESCALATED"
	StatusClosed         ConversationStatus = "CLOSED"
)

// legacyStatusAliases maps historical status spellings onto the canonical
// variants. Aliases exist only at the input boundary; the store never holds
// them.
var legacyStatusAliases = map[string]ConversationStatus{
	"ACTIVE":  StatusActiveBot,
	"HANDOFF": StatusPendingHandoff,
	"DONE":    StatusCompleted,
}

// ParseConversationStatus translates a textual status, accepting legacy
// aliases, into a canonical ConversationStatus.
func ParseConversationStatus(s string) (ConversationStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	switch ConversationStatus(normalized) {
	case StatusActiveBot, StatusPendingHandoff, StatusActiveHuman, StatusCompleted, StatusEscalated, StatusClosed:
		return ConversationStatus(normalized), nil
	}
	if canonical, ok := legacyStatusAliases[normalized]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown conversation status: %q", s)
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s ConversationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// Conversation is one lead's conversation thread over the messaging channel.
type Conversation struct {
	ID                 string             `json:"id" gorm:"type:uuid;primaryKey"`
	LeadID             string             `json:"lead_id" gorm:"type:uuid;not null;index"`
	Status             ConversationStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	IsUrgent           bool               `json:"is_urgent" gorm:"default:false"`
	Notes              string             `json:"notes" gorm:"type:text"`
	AssignedOperatorID *string            `json:"assigned_operator_id,omitempty" gorm:"type:uuid"`
	LastMessageAt      time.Time          `json:"last_message_at" gorm:"index"`
	ReengagedAt        *time.Time         `json:"reengaged_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationMessage is a single message in a conversation. Rows are
// append-only; nothing mutates a message after creation.
type ConversationMessage struct {
	ID             string           `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID string           `json:"conversation_id" gorm:"type:uuid;not null;index"`
	Direction      MessageDirection `json:"direction" gorm:"type:varchar(16);not null"`
	Content        string           `json:"content" gorm:"type:text"`
	Transcription  *string          `json:"transcription,omitempty" gorm:"type:text"`
	AudioURL       *string          `json:"audio_url,omitempty" gorm:"type:text"`
	MediaURL       *string          `json:"media_url,omitempty" gorm:"type:text"`
	MediaType      *string          `json:"media_type,omitempty" gorm:"type:varchar(64)"`
	Latitude       *float64         `json:"latitude,omitempty"`
	Longitude      *float64         `json:"longitude,omitempty"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime;index"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

// CreateConversationRequest represents the request to open a conversation.
type CreateConversationRequest struct {
	LeadID   string `json:"lead_id" validate:"required"`
	IsUrgent bool   `json:"is_urgent"`
	Notes    string `json:"notes"`
}

// UpdateConversationRequest represents a partial conversation update. Status
// changes go through the lifecycle endpoints, not here.
type UpdateConversationRequest struct {
	IsUrgent *bool   `json:"is_urgent,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}
