package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/orchestrator"
)

// JobHandler serves the job API: create, list, get and cancel.
type JobHandler struct {
	orchestrator *orchestrator.Service
	logger       arbor.ILogger
}

func NewJobHandler(orch *orchestrator.Service) *JobHandler {
	return &JobHandler{
		orchestrator: orch,
		logger:       common.GetLogger(),
	}
}

// JobsHandler handles /api/jobs: GET lists jobs, POST creates one.
func (h *JobHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listJobs(w, r)
	case http.MethodPost:
		h.createJob(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// JobRoutes handles /api/jobs/{id}: GET reads, DELETE cancels.
func (h *JobHandler) JobRoutes(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getJob(w, r, id)
	case http.MethodDelete:
		h.cancelJob(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var input orchestrator.CreateJobInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	job, err := h.orchestrator.CreateJob(r.Context(), &input)
	if err != nil {
		if errors.Is(err, orchestrator.ErrValidation) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to create job")
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.orchestrator.ListJobs(r.Context(), GetListOptions(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) getJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.orchestrator.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandler) cancelJob(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.orchestrator.CancelJob(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			WriteError(w, http.StatusNotFound, "Job not found")
		case errors.Is(err, orchestrator.ErrValidation):
			WriteError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to cancel job")
			WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
		}
		return
	}

	WriteSuccess(w, "Job canceled")
}
