package handler

import (
	"net/http"

	"github.com/ClareAI/astra-lead-service/internal/services/lifecycle"
	"github.com/gorilla/mux"
)

// JobHandler exposes externally triggered maintenance jobs. The service never
// schedules these itself; a cron or an admin call does.
type JobHandler struct {
	lifecycle *lifecycle.Service
}

// NewJobHandler creates a new job handler
func NewJobHandler(lifecycleSvc *lifecycle.Service) *JobHandler {
	return &JobHandler{lifecycle: lifecycleSvc}
}

// SetupJobRoutes registers job routes on the API router.
func (h *JobHandler) SetupJobRoutes(router *mux.Router) {
	router.HandleFunc("/jobs/reengagement", h.RunReengagement).Methods("POST")
}

// RunReengagement godoc
// @Summary Run the re-engagement sweep
// @Description Send one automated nudge to each stale PENDING_HANDOFF conversation. Idempotent per conversation; running it again immediately sends nothing.
// @Tags jobs
// @Produce json
// @Success 200 {object} lifecycle.SweepResult "Sweep summary"
// @Failure 500 {object} map[string]string "Sweep could not start"
// @Router /api/jobs/reengagement [post]
func (h *JobHandler) RunReengagement(w http.ResponseWriter, r *http.Request) {
	result, err := h.lifecycle.Sweep(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
