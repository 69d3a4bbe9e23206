package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type KeyType string

const (
	CONVERSATION_CONTEXT KeyType = "astra_conversation_context"
)

// NotificationChannelPrefix is the pub/sub channel prefix for operator
// notification fan-out. The full channel is prefix + operator ID.
const NotificationChannelPrefix = "notifications:"

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

var ErrKeyNotExist = redis.Nil

type RedisService struct {
	client *redis.Client
}

func NewRedisService(config *RedisConfig) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

// GenerateKey generates a Redis key with the given key type and identifier
func (r *RedisService) GenerateKey(keyType KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s:", string(keyType), identifier)
}

// Publish publishes a message to a Redis channel
func (r *RedisService) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to a Redis channel and handles incoming messages until
// the context is cancelled.
func (r *RedisService) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	pubsub := r.client.Subscribe(ctx, channel)

	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()
	go func() {
		for msg := range pubsub.Channel() {
			handler(msg.Payload)
		}
	}()

	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisService) Close() error {
	return r.client.Close()
}

// ContextTurn is a single conversation turn kept in the context cache. The
// playbook selector builds its retrieval query from these instead of hitting
// the message table on every inbound message.
type ContextTurn struct {
	Direction string `json:"direction"` // "INBOUND" or "OUTBOUND"
	Content   string `json:"content"`
}

// GetConversationContext retrieves the cached recent turns for a conversation.
// A missing key returns nil, nil.
func (r *RedisService) GetConversationContext(ctx context.Context, conversationID string) ([]ContextTurn, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	key := r.GenerateKey(CONVERSATION_CONTEXT, conversationID)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation context: %w", err)
	}

	var turns []ContextTurn
	if err := json.Unmarshal([]byte(val), &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation context: %w", err)
	}

	return turns, nil
}

// AppendConversationContext appends turns to the cached context, keeping at
// most maxTurns of the newest entries.
func (r *RedisService) AppendConversationContext(ctx context.Context, conversationID string, newTurns []ContextTurn, maxTurns int, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	key := r.GenerateKey(CONVERSATION_CONTEXT, conversationID)

	existing, err := r.GetConversationContext(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to get existing context: %w", err)
	}

	all := append(existing, newTurns...)
	if maxTurns > 0 && len(all) > maxTurns {
		all = all[len(all)-maxTurns:]
	}

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation context: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation context: %w", err)
	}

	return nil
}

// ClearConversationContext removes the cached context for a conversation.
func (r *RedisService) ClearConversationContext(ctx context.Context, conversationID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	key := r.GenerateKey(CONVERSATION_CONTEXT, conversationID)
	return r.client.Del(ctx, key).Err()
}
