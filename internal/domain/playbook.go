package domain

import "time"

// Topic groups playbooks by subject area.
type Topic struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(128);uniqueIndex:uni_topics_name;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Topic) TableName() string {
	return "topics"
}

// Playbook is a named, ordered sequence of template messages addressing a
// topic, retrievable by semantic similarity.
type Playbook struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	TopicID     string    `json:"topic_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Playbook) TableName() string {
	return "playbooks"
}

// PlaybookStep is one message of a playbook. StepOrder is unique and
// sequential (1..n) within its playbook.
type PlaybookStep struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	PlaybookID     string    `json:"playbook_id" gorm:"type:uuid;not null;uniqueIndex:uni_playbook_step_order"`
	StepOrder      int       `json:"step_order" gorm:"not null;uniqueIndex:uni_playbook_step_order"`
	MessageContent string    `json:"message_content" gorm:"type:text;not null"`
	ContextHint    string    `json:"context_hint" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PlaybookStep) TableName() string {
	return "playbook_steps"
}

// PlaybookEmbedding records that a playbook's text was pushed to the external
// vector index, and with what.
type PlaybookEmbedding struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	PlaybookID string    `json:"playbook_id" gorm:"type:uuid;uniqueIndex:uni_playbook_embeddings_playbook;not null"`
	Model      string    `json:"model" gorm:"type:varchar(128);not null"`
	Dimensions int       `json:"dimensions"`
	Checksum   string    `json:"checksum" gorm:"type:varchar(64)"`
	IndexedAt  time.Time `json:"indexed_at"`
}

func (PlaybookEmbedding) TableName() string {
	return "playbook_embeddings"
}

// CreatePlaybookRequest represents the request to create a playbook with its steps.
type CreatePlaybookRequest struct {
	TopicID     string                      `json:"topic_id" validate:"required"`
	Name        string                      `json:"name" validate:"required"`
	Description string                      `json:"description"`
	Steps       []CreatePlaybookStepRequest `json:"steps"`
}

// CreatePlaybookStepRequest is one step in a playbook create/update request.
type CreatePlaybookStepRequest struct {
	StepOrder      int    `json:"step_order" validate:"required"`
	MessageContent string `json:"message_content" validate:"required"`
	ContextHint    string `json:"context_hint"`
}
