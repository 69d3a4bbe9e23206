package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/gorilla/mux"
)

// LeadHandler handles HTTP requests for leads
type LeadHandler struct {
	leadRepo *repository.LeadRepository
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadRepo *repository.LeadRepository) *LeadHandler {
	return &LeadHandler{leadRepo: leadRepo}
}

// SetupLeadRoutes registers lead routes on the API router.
func (h *LeadHandler) SetupLeadRoutes(router *mux.Router) {
	router.HandleFunc("/leads", h.CreateLead).Methods("POST")
	router.HandleFunc("/leads", h.ListLeads).Methods("GET")
	router.HandleFunc("/leads/{id}", h.GetLead).Methods("GET")
	router.HandleFunc("/leads/{id}", h.UpdateLead).Methods("PUT")
	router.HandleFunc("/leads/{id}", h.DeleteLead).Methods("DELETE")
}

// CreateLead godoc
// @Summary Create a new lead
// @Description Create a lead with phone number, name and optional maturity score
// @Tags leads
// @Accept json
// @Produce json
// @Param lead body domain.CreateLeadRequest true "Lead creation request"
// @Success 201 {object} domain.Lead "Lead created successfully"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/leads [post]
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}
	if req.MaturityScore < 0 || req.MaturityScore > 100 {
		writeError(w, http.StatusBadRequest, "maturity_score must be between 0 and 100")
		return
	}

	lead, err := h.leadRepo.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, lead)
}

// ListLeads godoc
// @Summary List leads
// @Description List leads, excluding soft-deleted ones. Filter by assigned operator and minimum maturity score.
// @Tags leads
// @Produce json
// @Param operator_id query string false "Assigned operator ID"
// @Param min_score query int false "Minimum maturity score"
// @Success 200 {array} domain.Lead "Leads"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/leads [get]
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	operatorID := r.URL.Query().Get("operator_id")
	minScore := 0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be an integer")
			return
		}
		minScore = parsed
	}

	leads, err := h.leadRepo.GetAll(r.Context(), operatorID, minScore)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, leads)
}

// GetLead godoc
// @Summary Get lead by ID
// @Description Retrieve a lead by ID. Soft-deleted leads remain retrievable here for audit purposes.
// @Tags leads
// @Produce json
// @Param id path string true "Lead ID (UUID)" format(uuid)
// @Success 200 {object} domain.Lead "Lead found"
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /api/leads/{id} [get]
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	lead, err := h.leadRepo.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// UpdateLead godoc
// @Summary Update a lead
// @Description Partially update a lead's name, email, maturity score or assignment
// @Tags leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID (UUID)" format(uuid)
// @Param lead body domain.UpdateLeadRequest true "Fields to update"
// @Success 200 {object} domain.Lead "Lead updated"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /api/leads/{id} [put]
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaturityScore != nil && (*req.MaturityScore < 0 || *req.MaturityScore > 100) {
		writeError(w, http.StatusBadRequest, "maturity_score must be between 0 and 100")
		return
	}

	lead, err := h.leadRepo.Update(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// DeleteLead godoc
// @Summary Delete a lead
// @Description Soft-delete a lead. The record stays retrievable by ID.
// @Tags leads
// @Produce json
// @Param id path string true "Lead ID (UUID)" format(uuid)
// @Success 204 "Lead deleted"
// @Failure 404 {object} map[string]string "Lead not found"
// @Router /api/leads/{id} [delete]
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.leadRepo.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
