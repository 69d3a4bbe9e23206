package notify

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
)

// NotificationStore is the slice of the notification repository the emitter
// needs.
type NotificationStore interface {
	Create(ctx context.Context, notification *domain.Notification) error
}

// Publisher fans a notification out to connected dashboards. Optional.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Emitter persists notifications and pushes them to the per-operator pub/sub
// channel. The durable row is the source of truth; pub/sub is best-effort
// delivery for live dashboards.
type Emitter struct {
	store     NotificationStore
	publisher Publisher
}

// NewEmitter creates a notification emitter. publisher may be nil when redis
// is not configured.
func NewEmitter(store NotificationStore, publisher Publisher) *Emitter {
	return &Emitter{store: store, publisher: publisher}
}

// Emit writes the notification row and publishes it. A publish failure is
// logged but not surfaced: the operator still sees the notification on the
// next list call.
func (e *Emitter) Emit(ctx context.Context, userID string, typ domain.NotificationType, title, message string) error {
	notification := &domain.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
	}

	if err := e.store.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if e.publisher != nil {
		channel := redis.NotificationChannelPrefix + userID
		if err := e.publisher.Publish(ctx, channel, notification); err != nil {
			logger.L().Warnw("failed to publish notification",
				"user_id", userID,
				"channel", channel,
				"error", err)
		}
	}

	return nil
}
