package repository

import (
	"fmt"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/config"
	"github.com/ClareAI/astra-lead-service/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadDatabaseConfigFromEnv loads database configuration from environment variables
func LoadDatabaseConfigFromEnv() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            config.GetEnvOrDefault("DB_HOST", "localhost"),
		Port:            config.GetEnvIntOrDefault("DB_PORT", 5432),
		User:            config.GetEnvOrDefault("DB_USER", "postgres"),
		Password:        config.GetEnvOrDefault("DB_PASSWORD", ""),
		DBName:          config.GetEnvOrDefault("DB_NAME", "lead_service"),
		SSLMode:         config.GetEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    config.GetEnvIntOrDefault("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    config.GetEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(config.GetEnvIntOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		ConnMaxIdleTime: time.Duration(config.GetEnvIntOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 5)) * time.Minute,
	}
}

// NewDatabaseConnection creates a new GORM database connection
func NewDatabaseConnection(cfg *DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Lead{},
		&domain.Conversation{},
		&domain.ConversationMessage{},
		&domain.Tag{},
		&domain.ConversationTag{},
		&domain.Notification{},
		&domain.AuditLog{},
		&domain.Operator{},
		&domain.Topic{},
		&domain.Playbook{},
		&domain.PlaybookStep{},
		&domain.PlaybookEmbedding{},
	)
}

// NewRepositoryManager creates a repository manager backed by a fresh
// database connection.
func NewRepositoryManager() (RepositoryManager, error) {
	cfg := LoadDatabaseConfigFromEnv()
	db, err := NewDatabaseConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run auto migration: %w", err)
	}

	return NewGormRepositoryManager(db), nil
}
