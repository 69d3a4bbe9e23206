package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig holds the lead service configuration loaded from environment.
type AppConfig struct {
	Port       string
	InstanceID string

	// JWT signing secret for operator sessions
	JWTSecret      string
	JWTExpiryHours int

	// Outbound messaging
	MessagingProvider string // "gateway" or "twilio"
	GatewayBaseURL    string
	GatewayTenantID   string
	GatewayAPIKey     string
	GatewayWebhookKey string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Playbook retrieval
	SemanticIndexURL    string
	SemanticIndexAPIKey string
	OpenAIAPIKey        string
	EmbeddingModel      string
	PlaybookTopK        int
	PlaybookMinScore    float64
	ContextTurns        int
	ContextTTL          time.Duration

	// Re-engagement sweep
	ReengagementThreshold time.Duration
	ReengagementMessage   string
}

// LoadFromEnv loads the service configuration from environment variables.
func LoadFromEnv() *AppConfig {
	return &AppConfig{
		Port:       GetEnvOrDefault("PORT", "8080"),
		InstanceID: instanceID(),

		JWTSecret:      GetEnvOrDefault("JWT_SECRET", ""),
		JWTExpiryHours: GetEnvIntOrDefault("JWT_EXPIRY_HOURS", 24),

		MessagingProvider: GetEnvOrDefault("MESSAGING_PROVIDER", "gateway"),
		GatewayBaseURL:    GetEnvOrDefault("GATEWAY_BASE_URL", ""),
		GatewayTenantID:   GetEnvOrDefault("GATEWAY_TENANT_ID", ""),
		GatewayAPIKey:     GetEnvOrDefault("GATEWAY_API_KEY", ""),
		GatewayWebhookKey: GetEnvOrDefault("GATEWAY_WEBHOOK_KEY", ""),
		TwilioAccountSID:  GetEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   GetEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  GetEnvOrDefault("TWILIO_FROM_NUMBER", ""),

		RedisHost:     GetEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     GetEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvIntOrDefault("REDIS_DB", 0),

		SemanticIndexURL:    GetEnvOrDefault("SEMANTIC_INDEX_URL", ""),
		SemanticIndexAPIKey: GetEnvOrDefault("SEMANTIC_INDEX_API_KEY", ""),
		OpenAIAPIKey:        GetEnvOrDefault("OPENAI_API_KEY", ""),
		EmbeddingModel:      GetEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		PlaybookTopK:        GetEnvIntOrDefault("PLAYBOOK_TOP_K", 3),
		PlaybookMinScore:    GetEnvFloatOrDefault("PLAYBOOK_MIN_SCORE", 0.75),
		ContextTurns:        GetEnvIntOrDefault("CONTEXT_TURNS", 10),
		ContextTTL:          time.Duration(GetEnvIntOrDefault("CONTEXT_TTL_HOURS", 72)) * time.Hour,

		ReengagementThreshold: time.Duration(GetEnvIntOrDefault("REENGAGEMENT_THRESHOLD_HOURS", 48)) * time.Hour,
		ReengagementMessage: GetEnvOrDefault("REENGAGEMENT_MESSAGE",
			"Hi! We noticed you haven't replied in a while. Is there anything else we can help you with?"),
	}
}

// instanceID identifies this service instance. In Kubernetes the hostname is
// the pod name, which is what the logs should carry.
func instanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "lead-service-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// GetEnvOrDefault gets environment variable or returns default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntOrDefault gets environment variable as int or returns default
func GetEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloatOrDefault gets environment variable as float64 or returns default
func GetEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
