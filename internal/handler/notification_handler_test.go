package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ClareAI/astra-lead-service/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	channel  string
	payloads []string
	err      error
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	if f.err != nil {
		return f.err
	}
	f.channel = channel
	for _, payload := range f.payloads {
		handler(payload)
	}
	return nil
}

func streamRequest(t *testing.T, operatorID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/notifications/stream", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	t.Cleanup(cancel)
	if operatorID != "" {
		ctx = context.WithValue(ctx, operatorIDKey, operatorID)
	}
	return req.WithContext(ctx)
}

func TestStreamWritesPublishedNotifications(t *testing.T) {
	subscriber := &fakeSubscriber{payloads: []string{`{"title":"Conversation awaiting handoff"}`}}
	h := NewNotificationHandler(nil, subscriber)

	rec := httptest.NewRecorder()
	h.Stream(rec, streamRequest(t, "op-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, redis.NotificationChannelPrefix+"op-1", subscriber.channel)
	assert.Contains(t, rec.Body.String(), "data: {\"title\":\"Conversation awaiting handoff\"}\n\n")
}

func TestStreamWithoutSubscriberUnavailable(t *testing.T) {
	h := NewNotificationHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Stream(rec, streamRequest(t, "op-1"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamSubscribeFailureUnavailable(t *testing.T) {
	subscriber := &fakeSubscriber{err: errors.New("connection refused")}
	h := NewNotificationHandler(nil, subscriber)

	rec := httptest.NewRecorder()
	h.Stream(rec, streamRequest(t, "op-1"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamRequiresIdentity(t *testing.T) {
	h := NewNotificationHandler(nil, &fakeSubscriber{})

	rec := httptest.NewRecorder()
	h.Stream(rec, streamRequest(t, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
