package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ClareAI/astra-lead-service/internal/services/messaging"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WebhookHandler receives inbound message events from the messaging gateway.
type WebhookHandler struct {
	messaging  *messaging.Service
	webhookKey string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(messagingSvc *messaging.Service, webhookKey string) *WebhookHandler {
	return &WebhookHandler{
		messaging:  messagingSvc,
		webhookKey: webhookKey,
	}
}

// SetupWebhookRoutes registers the gateway webhook behind the shared-secret
// check.
func (h *WebhookHandler) SetupWebhookRoutes(router *mux.Router) {
	webhooks := router.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(WebhookAuthMiddleware(h.webhookKey))
	webhooks.HandleFunc("/gateway/message", h.GatewayMessage).Methods("POST")
}

// GatewayMessageEvent is the inbound message payload from the gateway.
type GatewayMessageEvent struct {
	WaID          string   `json:"waId"`
	SenderName    string   `json:"senderName"`
	Text          string   `json:"text"`
	Transcription *string  `json:"transcription,omitempty"`
	AudioURL      *string  `json:"audioUrl,omitempty"`
	MediaURL      *string  `json:"mediaUrl,omitempty"`
	MediaType     *string  `json:"mediaType,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

// GatewayMessage godoc
// @Summary Inbound message webhook
// @Description Process one inbound message from the messaging gateway: find or create the lead and its open conversation, append the message and refresh activity
// @Tags webhooks
// @Accept json
// @Produce json
// @Param event body GatewayMessageEvent true "Inbound message event"
// @Success 200 {object} messaging.InboundResult "Message processed"
// @Failure 400 {object} map[string]string "Invalid payload"
// @Failure 401 {object} map[string]string "Invalid webhook key"
// @Router /webhooks/gateway/message [post]
func (h *WebhookHandler) GatewayMessage(w http.ResponseWriter, r *http.Request) {
	var event GatewayMessageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.WaID == "" {
		writeError(w, http.StatusBadRequest, "waId is required")
		return
	}

	result, err := h.messaging.Inbound(r.Context(), &messaging.InboundMessage{
		PhoneNumber:   event.WaID,
		SenderName:    event.SenderName,
		Content:       event.Text,
		Transcription: event.Transcription,
		AudioURL:      event.AudioURL,
		MediaURL:      event.MediaURL,
		MediaType:     event.MediaType,
		Latitude:      event.Latitude,
		Longitude:     event.Longitude,
	})
	if err != nil {
		logger.Base().Error("failed to process inbound message",
			zap.String("wa_id", event.WaID),
			zap.Error(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
