package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/ClareAI/astra-lead-service/internal/services/playbook"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/gorilla/mux"
)

// PlaybookHandler handles HTTP requests for topics, playbooks and playbook
// selection.
type PlaybookHandler struct {
	playbookRepo *repository.PlaybookRepository
	selector     *playbook.Selector
	indexer      *playbook.Indexer
}

// NewPlaybookHandler creates a new playbook handler
func NewPlaybookHandler(playbookRepo *repository.PlaybookRepository, selector *playbook.Selector, indexer *playbook.Indexer) *PlaybookHandler {
	return &PlaybookHandler{
		playbookRepo: playbookRepo,
		selector:     selector,
		indexer:      indexer,
	}
}

// SetupPlaybookRoutes registers playbook routes on the API router.
func (h *PlaybookHandler) SetupPlaybookRoutes(router *mux.Router) {
	router.HandleFunc("/topics", h.CreateTopic).Methods("POST")
	router.HandleFunc("/topics", h.ListTopics).Methods("GET")

	router.HandleFunc("/playbooks", h.CreatePlaybook).Methods("POST")
	router.HandleFunc("/playbooks", h.ListPlaybooks).Methods("GET")
	router.HandleFunc("/playbooks/select", h.SelectPlaybook).Methods("POST")
	router.HandleFunc("/playbooks/{id}", h.GetPlaybook).Methods("GET")
	router.HandleFunc("/playbooks/{id}", h.DeletePlaybook).Methods("DELETE")
	router.HandleFunc("/playbooks/{id}/steps", h.ReplaceSteps).Methods("PUT")
}

// CreateTopicRequest is the topic creation payload.
type CreateTopicRequest struct {
	Name string `json:"name"`
}

// CreateTopic godoc
// @Summary Create a topic
// @Tags playbooks
// @Accept json
// @Produce json
// @Param topic body CreateTopicRequest true "Topic creation request"
// @Success 201 {object} domain.Topic "Topic created"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/topics [post]
func (h *PlaybookHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	topic, err := h.playbookRepo.CreateTopic(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, topic)
}

// ListTopics godoc
// @Summary List topics
// @Tags playbooks
// @Produce json
// @Success 200 {array} domain.Topic "Topics"
// @Router /api/topics [get]
func (h *PlaybookHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.playbookRepo.GetTopics(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, topics)
}

// CreatePlaybook godoc
// @Summary Create a playbook
// @Description Create a playbook with its ordered steps and push it to the semantic index
// @Tags playbooks
// @Accept json
// @Produce json
// @Param playbook body domain.CreatePlaybookRequest true "Playbook creation request"
// @Success 201 {object} domain.Playbook "Playbook created"
// @Failure 400 {object} map[string]string "Invalid request body or step ordering"
// @Router /api/playbooks [post]
func (h *PlaybookHandler) CreatePlaybook(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TopicID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "topic_id and name are required")
		return
	}

	created, err := h.playbookRepo.CreatePlaybook(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.reindex(r, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// ListPlaybooks godoc
// @Summary List playbooks
// @Tags playbooks
// @Produce json
// @Param topic_id query string false "Filter by topic"
// @Success 200 {array} domain.Playbook "Playbooks"
// @Router /api/playbooks [get]
func (h *PlaybookHandler) ListPlaybooks(w http.ResponseWriter, r *http.Request) {
	playbooks, err := h.playbookRepo.GetPlaybooks(r.Context(), r.URL.Query().Get("topic_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, playbooks)
}

// PlaybookDetail is a playbook with its ordered steps.
type PlaybookDetail struct {
	*domain.Playbook
	Steps []*domain.PlaybookStep `json:"steps"`
}

// GetPlaybook godoc
// @Summary Get playbook by ID
// @Tags playbooks
// @Produce json
// @Param id path string true "Playbook ID (UUID)" format(uuid)
// @Success 200 {object} PlaybookDetail "Playbook found"
// @Failure 404 {object} map[string]string "Playbook not found"
// @Router /api/playbooks/{id} [get]
func (h *PlaybookHandler) GetPlaybook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	found, err := h.playbookRepo.GetPlaybookByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "playbook not found")
		return
	}

	steps, err := h.playbookRepo.GetStepsByPlaybookID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PlaybookDetail{Playbook: found, Steps: steps})
}

// ReplaceStepsRequest is the payload to swap a playbook's step sequence.
type ReplaceStepsRequest struct {
	Steps []domain.CreatePlaybookStepRequest `json:"steps"`
}

// ReplaceSteps godoc
// @Summary Replace playbook steps
// @Description Replace a playbook's step sequence and reindex it
// @Tags playbooks
// @Accept json
// @Produce json
// @Param id path string true "Playbook ID (UUID)" format(uuid)
// @Param steps body ReplaceStepsRequest true "New step sequence"
// @Success 200 {array} domain.PlaybookStep "Steps replaced"
// @Failure 400 {object} map[string]string "Invalid step ordering"
// @Router /api/playbooks/{id}/steps [put]
func (h *PlaybookHandler) ReplaceSteps(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ReplaceStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.playbookRepo.ReplaceSteps(r.Context(), id, req.Steps); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	steps, err := h.playbookRepo.GetStepsByPlaybookID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.reindex(r, id)
	writeJSON(w, http.StatusOK, steps)
}

// DeletePlaybook godoc
// @Summary Delete a playbook
// @Description Delete a playbook, its steps and its semantic index document
// @Tags playbooks
// @Produce json
// @Param id path string true "Playbook ID (UUID)" format(uuid)
// @Success 204 "Playbook deleted"
// @Failure 404 {object} map[string]string "Playbook not found"
// @Router /api/playbooks/{id} [delete]
func (h *PlaybookHandler) DeletePlaybook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.playbookRepo.DeletePlaybook(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	if h.indexer != nil {
		if err := h.indexer.Remove(r.Context(), id); err != nil {
			logger.L().Warnw("failed to remove playbook from index",
				"playbook_id", id,
				"error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SelectPlaybookRequest is the payload for playbook selection. Either a
// conversation ID (the query is derived from its recent turns) or an explicit
// query must be provided.
type SelectPlaybookRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Query          string `json:"query,omitempty"`
	Topic          string `json:"topic,omitempty"`
}

// SelectPlaybookResponse is the selection result. Match is false when no
// playbook clears the score cutoff; that is a normal answer, not an error.
type SelectPlaybookResponse struct {
	Match          bool                     `json:"match"`
	Recommendation *playbook.Recommendation `json:"recommendation,omitempty"`
}

// SelectPlaybook godoc
// @Summary Select a playbook step
// @Description Return the most relevant playbook step for a conversation's recent context, or match=false when nothing clears the similarity cutoff
// @Tags playbooks
// @Accept json
// @Produce json
// @Param selection body SelectPlaybookRequest true "Selection request"
// @Success 200 {object} SelectPlaybookResponse "Selection result"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/playbooks/select [post]
func (h *PlaybookHandler) SelectPlaybook(w http.ResponseWriter, r *http.Request) {
	var req SelectPlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := req.Query
	if query == "" && req.ConversationID != "" {
		query = h.selector.BuildQuery(r.Context(), req.ConversationID)
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "query or conversation_id is required")
		return
	}

	recommendation, err := h.selector.Select(r.Context(), query, req.Topic)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SelectPlaybookResponse{
		Match:          recommendation != nil,
		Recommendation: recommendation,
	})
}

// reindex pushes a playbook to the semantic index after a write. Index
// trouble never fails the write that triggered it.
func (h *PlaybookHandler) reindex(r *http.Request, playbookID string) {
	if h.indexer == nil {
		return
	}
	if err := h.indexer.Reindex(r.Context(), playbookID); err != nil {
		logger.L().Warnw("failed to reindex playbook",
			"playbook_id", playbookID,
			"error", err)
	}
}
