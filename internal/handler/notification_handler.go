package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
	"github.com/gorilla/mux"
)

// NotificationSubscriber receives live notification payloads published for an
// operator. Handlers run until the context is cancelled.
type NotificationSubscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(string)) error
}

// NotificationHandler handles HTTP requests for operator notifications
type NotificationHandler struct {
	notificationRepo *repository.NotificationRepository
	subscriber       NotificationSubscriber
}

// NewNotificationHandler creates a new notification handler. subscriber may be
// nil, in which case the live stream endpoint reports unavailable.
func NewNotificationHandler(notificationRepo *repository.NotificationRepository, subscriber NotificationSubscriber) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo, subscriber: subscriber}
}

// SetupNotificationRoutes registers notification routes on the API router.
func (h *NotificationHandler) SetupNotificationRoutes(router *mux.Router) {
	router.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	router.HandleFunc("/notifications/stream", h.Stream).Methods("GET")
	router.HandleFunc("/notifications/{id}/read", h.MarkRead).Methods("POST")
}

// ListNotifications godoc
// @Summary List my notifications
// @Description List the authenticated operator's notifications, newest first
// @Tags notifications
// @Produce json
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} domain.Notification "Notifications"
// @Router /api/notifications [get]
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	operatorID := OperatorID(r)
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "missing operator identity")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.notificationRepo.GetByUserID(r.Context(), operatorID, unreadOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// Stream godoc
// @Summary Stream my notifications
// @Description Server-sent event stream of the authenticated operator's live notifications
// @Tags notifications
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream"
// @Failure 503 {object} map[string]string "Live streaming unavailable"
// @Router /api/notifications/stream [get]
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	operatorID := OperatorID(r)
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "missing operator identity")
		return
	}
	if h.subscriber == nil {
		writeError(w, http.StatusServiceUnavailable, "live notifications unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan string, 16)
	channel := redis.NotificationChannelPrefix + operatorID
	err := h.subscriber.Subscribe(r.Context(), channel, func(payload string) {
		select {
		case events <- payload:
		default:
			// Slow consumer: drop rather than block the pub/sub reader.
		}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "live notifications unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-events:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Description Flip the read flag on one of the authenticated operator's notifications
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID (UUID)" format(uuid)
// @Success 204 "Notification marked read"
// @Failure 404 {object} map[string]string "Notification not found"
// @Router /api/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	operatorID := OperatorID(r)
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "missing operator identity")
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.notificationRepo.MarkRead(r.Context(), id, operatorID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
