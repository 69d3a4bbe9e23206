package domain

import "time"

// Tag labels conversations for triage and reporting.
type Tag struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(64);uniqueIndex:uni_tags_name;not null"`
	Color     string    `json:"color" gorm:"type:varchar(16)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Tag) TableName() string {
	return "tags"
}

// ConversationTag is the association row between conversations and tags. It
// carries its own creation timestamp so "tagged when" is queryable.
type ConversationTag struct {
	ConversationID string    `json:"conversation_id" gorm:"type:uuid;primaryKey"`
	TagID          string    `json:"tag_id" gorm:"type:uuid;primaryKey"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ConversationTag) TableName() string {
	return "conversation_tags"
}

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
}
