package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/gorilla/mux"
)

// TagHandler handles HTTP requests for tags
type TagHandler struct {
	tagRepo *repository.TagRepository
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tagRepo *repository.TagRepository) *TagHandler {
	return &TagHandler{tagRepo: tagRepo}
}

// SetupTagRoutes registers tag routes on the API router.
func (h *TagHandler) SetupTagRoutes(router *mux.Router) {
	router.HandleFunc("/tags", h.CreateTag).Methods("POST")
	router.HandleFunc("/tags", h.ListTags).Methods("GET")
	router.HandleFunc("/tags/{id}", h.DeleteTag).Methods("DELETE")
}

// CreateTag godoc
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param tag body domain.CreateTagRequest true "Tag creation request"
// @Success 201 {object} domain.Tag "Tag created"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/tags [post]
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	tag, err := h.tagRepo.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tag)
}

// ListTags godoc
// @Summary List all tags
// @Tags tags
// @Produce json
// @Success 200 {array} domain.Tag "Tags"
// @Router /api/tags [get]
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tagRepo.GetAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tags)
}

// DeleteTag godoc
// @Summary Delete a tag
// @Description Delete a tag and all its conversation assignments
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID (UUID)" format(uuid)
// @Success 204 "Tag deleted"
// @Failure 404 {object} map[string]string "Tag not found"
// @Router /api/tags/{id} [delete]
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.tagRepo.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
