package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/ClareAI/astra-lead-service/internal/services/lifecycle"
	"github.com/ClareAI/astra-lead-service/internal/services/messaging"
	"github.com/gorilla/mux"
)

// ConversationHandler handles HTTP requests for conversations, their
// messages, tags and lifecycle transitions.
type ConversationHandler struct {
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	tagRepo          *repository.TagRepository
	auditRepo        *repository.AuditRepository
	lifecycle        *lifecycle.Service
	sender           *messaging.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationRepo *repository.ConversationRepository, messageRepo *repository.MessageRepository, tagRepo *repository.TagRepository, auditRepo *repository.AuditRepository, lifecycleSvc *lifecycle.Service, sender *messaging.Service) *ConversationHandler {
	return &ConversationHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		tagRepo:          tagRepo,
		auditRepo:        auditRepo,
		lifecycle:        lifecycleSvc,
		sender:           sender,
	}
}

// SetupConversationRoutes registers conversation routes on the API router.
func (h *ConversationHandler) SetupConversationRoutes(router *mux.Router) {
	router.HandleFunc("/conversations", h.CreateConversation).Methods("POST")
	router.HandleFunc("/conversations", h.ListConversations).Methods("GET")
	router.HandleFunc("/conversations/{id}", h.GetConversation).Methods("GET")
	router.HandleFunc("/conversations/{id}", h.UpdateConversation).Methods("PUT")

	router.HandleFunc("/conversations/{id}/handoff", h.transition(h.lifecycle.RequestHandoff)).Methods("POST")
	router.HandleFunc("/conversations/{id}/escalate", h.transition(h.lifecycle.Escalate)).Methods("POST")
	router.HandleFunc("/conversations/{id}/claim", h.transition(h.lifecycle.Claim)).Methods("POST")
	router.HandleFunc("/conversations/{id}/release", h.transition(h.lifecycle.Release)).Methods("POST")
	router.HandleFunc("/conversations/{id}/complete", h.transition(h.lifecycle.Complete)).Methods("POST")
	router.HandleFunc("/conversations/{id}/close", h.transition(h.lifecycle.Close)).Methods("POST")

	router.HandleFunc("/conversations/{id}/messages", h.ListMessages).Methods("GET")
	router.HandleFunc("/conversations/{id}/messages", h.SendMessage).Methods("POST")

	router.HandleFunc("/conversations/{id}/audit", h.GetAuditTrail).Methods("GET")

	router.HandleFunc("/conversations/{id}/tags", h.ListTags).Methods("GET")
	router.HandleFunc("/conversations/{id}/tags/{tagId}", h.AttachTag).Methods("PUT")
	router.HandleFunc("/conversations/{id}/tags/{tagId}", h.DetachTag).Methods("DELETE")
}

// CreateConversation godoc
// @Summary Open a conversation
// @Description Open a new conversation for a lead, starting in ACTIVE_BOT
// @Tags conversations
// @Accept json
// @Produce json
// @Param conversation body domain.CreateConversationRequest true "Conversation creation request"
// @Success 201 {object} domain.Conversation "Conversation created"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/conversations [post]
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LeadID == "" {
		writeError(w, http.StatusBadRequest, "lead_id is required")
		return
	}

	conversation := &domain.Conversation{
		LeadID:   req.LeadID,
		IsUrgent: req.IsUrgent,
		Notes:    req.Notes,
	}
	if err := h.conversationRepo.Create(r.Context(), conversation); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, conversation)
}

// ListConversations godoc
// @Summary List conversations by status
// @Description List conversations in a given status, newest activity first. Legacy status aliases (ACTIVE, HANDOFF, DONE) are accepted.
// @Tags conversations
// @Produce json
// @Param status query string true "Conversation status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} domain.Conversation "Conversations"
// @Failure 400 {object} map[string]string "Unknown status"
// @Router /api/conversations [get]
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	rawStatus := r.URL.Query().Get("status")
	if rawStatus == "" {
		writeError(w, http.StatusBadRequest, "status query parameter is required")
		return
	}
	status, err := domain.ParseConversationStatus(rawStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	conversations, err := h.conversationRepo.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

// ConversationDetail is a conversation with its transcript.
type ConversationDetail struct {
	*domain.Conversation
	Messages []*domain.ConversationMessage `json:"messages"`
	Tags     []*domain.Tag                 `json:"tags"`
}

// GetConversation godoc
// @Summary Get conversation by ID
// @Description Retrieve a conversation with its messages and tags
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Success 200 {object} ConversationDetail "Conversation found"
// @Failure 404 {object} map[string]string "Conversation not found"
// @Router /api/conversations/{id} [get]
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conversation, err := h.conversationRepo.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if conversation == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	messages, err := h.messageRepo.GetByConversationID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tags, err := h.tagRepo.GetByConversationID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ConversationDetail{
		Conversation: conversation,
		Messages:     messages,
		Tags:         tags,
	})
}

// UpdateConversation godoc
// @Summary Update conversation flags
// @Description Update urgency and notes. Status changes go through the lifecycle endpoints.
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Param conversation body domain.UpdateConversationRequest true "Fields to update"
// @Success 200 {object} domain.Conversation "Conversation updated"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/conversations/{id} [put]
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversation, err := h.conversationRepo.Update(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if conversation == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

// transition adapts a lifecycle operation into a handler. The acting operator
// comes from the JWT; transition conflicts surface as 409 with the full edge
// context.
func (h *ConversationHandler) transition(op func(ctx context.Context, conversationID, actor string) (*domain.Conversation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		actor := OperatorID(r)
		if actor == "" {
			actor = "system"
		}

		conversation, err := op(r.Context(), id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, conversation)
	}
}

// SendMessageRequest is the payload for an operator-sent outbound message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ListMessages godoc
// @Summary List conversation messages
// @Description Retrieve a conversation's transcript, oldest first
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Success 200 {array} domain.ConversationMessage "Messages"
// @Router /api/conversations/{id}/messages [get]
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	messages, err := h.messageRepo.GetByConversationID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// SendMessage godoc
// @Summary Send an outbound message
// @Description Send a text message to the lead behind the conversation and record it in the transcript
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Param message body SendMessageRequest true "Message to send"
// @Success 201 {object} domain.ConversationMessage "Message sent"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 502 {object} map[string]string "Messaging provider unavailable"
// @Router /api/conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	message, err := h.sender.SendToConversation(r.Context(), id, req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

// GetAuditTrail godoc
// @Summary Get a conversation's audit trail
// @Description Retrieve the recorded status changes for a conversation, oldest first
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Success 200 {array} domain.AuditLog "Audit entries"
// @Router /api/conversations/{id}/audit [get]
func (h *ConversationHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entries, err := h.auditRepo.GetByEntity(r.Context(), "conversation", id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ListTags godoc
// @Summary List conversation tags
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Success 200 {array} domain.Tag "Tags"
// @Router /api/conversations/{id}/tags [get]
func (h *ConversationHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tags, err := h.tagRepo.GetByConversationID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tags)
}

// AttachTag godoc
// @Summary Attach a tag to a conversation
// @Description Attach a tag. Attaching an already-attached tag is a no-op.
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Param tagId path string true "Tag ID (UUID)" format(uuid)
// @Success 204 "Tag attached"
// @Router /api/conversations/{id}/tags/{tagId} [put]
func (h *ConversationHandler) AttachTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.tagRepo.Attach(r.Context(), vars["id"], vars["tagId"]); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DetachTag godoc
// @Summary Detach a tag from a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)" format(uuid)
// @Param tagId path string true "Tag ID (UUID)" format(uuid)
// @Success 204 "Tag detached"
// @Router /api/conversations/{id}/tags/{tagId} [delete]
func (h *ConversationHandler) DetachTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.tagRepo.Detach(r.Context(), vars["id"], vars["tagId"]); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
