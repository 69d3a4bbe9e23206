package repository

import (
	"context"

	"gorm.io/gorm"
)

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Lead() *LeadRepository
	Conversation() *ConversationRepository
	Message() *MessageRepository
	Tag() *TagRepository
	Notification() *NotificationRepository
	Audit() *AuditRepository
	Operator() *OperatorRepository
	Playbook() *PlaybookRepository

	// Transaction support
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db               *gorm.DB
	leadRepo         *LeadRepository
	conversationRepo *ConversationRepository
	messageRepo      *MessageRepository
	tagRepo          *TagRepository
	notificationRepo *NotificationRepository
	auditRepo        *AuditRepository
	operatorRepo     *OperatorRepository
	playbookRepo     *PlaybookRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:               db,
		leadRepo:         NewLeadRepository(db),
		conversationRepo: NewConversationRepository(db),
		messageRepo:      NewMessageRepository(db),
		tagRepo:          NewTagRepository(db),
		notificationRepo: NewNotificationRepository(db),
		auditRepo:        NewAuditRepository(db),
		operatorRepo:     NewOperatorRepository(db),
		playbookRepo:     NewPlaybookRepository(db),
	}
}

func (m *GormRepositoryManager) Lead() *LeadRepository                 { return m.leadRepo }
func (m *GormRepositoryManager) Conversation() *ConversationRepository { return m.conversationRepo }
func (m *GormRepositoryManager) Message() *MessageRepository           { return m.messageRepo }
func (m *GormRepositoryManager) Tag() *TagRepository                   { return m.tagRepo }
func (m *GormRepositoryManager) Notification() *NotificationRepository { return m.notificationRepo }
func (m *GormRepositoryManager) Audit() *AuditRepository               { return m.auditRepo }
func (m *GormRepositoryManager) Operator() *OperatorRepository         { return m.operatorRepo }
func (m *GormRepositoryManager) Playbook() *PlaybookRepository         { return m.playbookRepo }

// WithTx executes a function within a database transaction
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
