package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/venuedesk/internal/access"
	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/job"
	"github.com/alecgard/venuedesk/internal/schema"
)

// jobsHandler serves venue jobs to managers and contractors.
type jobsHandler struct {
	jobs *job.Service
}

func newJobsHandler(jobs *job.Service) *jobsHandler {
	return &jobsHandler{jobs: jobs}
}

// List handles GET /api/v1/venues/{venueId}/jobs.
func (h *jobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListForVenue(r.Context(), chi.URLParam(r, "venueId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// Create handles POST /api/v1/venues/{venueId}/jobs.
func (h *jobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	var in job.CreateInput
	if !decodeValid(w, r, &in) {
		return
	}

	j, err := h.jobs.Create(r.Context(), auth.UserFromContext(r.Context()), venueID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "create", "job", j.ID, "venue_id", venueID)
	writeJSON(w, http.StatusCreated, j)
}

type jobDetail struct {
	Job     *schema.Job         `json:"job"`
	Updates []*schema.JobUpdate `json:"updates"`
}

// Get handles GET /api/v1/venues/{venueId}/jobs/{jobId}.
func (h *jobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	jobID := chi.URLParam(r, "jobId")

	j, err := h.jobs.Get(r.Context(), venueID, jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if j == nil {
		writeServiceError(w, r, docstore.ErrNotFound)
		return
	}
	updates, err := h.jobs.ListUpdates(r.Context(), venueID, jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobDetail{Job: j, Updates: updates})
}

// Update handles PATCH /api/v1/venues/{venueId}/jobs/{jobId}.
func (h *jobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	jobID := chi.URLParam(r, "jobId")
	var in job.UpdateInput
	if !decodeValid(w, r, &in) {
		return
	}

	j, err := h.jobs.Update(r.Context(), venueID, jobID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "update", "job", jobID, "venue_id", venueID)
	writeJSON(w, http.StatusOK, j)
}

// Updates handles GET /api/v1/venues/{venueId}/jobs/{jobId}/updates.
func (h *jobsHandler) Updates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.jobs.ListUpdates(r.Context(), chi.URLParam(r, "venueId"), chi.URLParam(r, "jobId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updates": updates})
}

type postUpdateRequest struct {
	Type     schema.UpdateType `json:"type" validate:"omitempty,oneof=comment photo"`
	Message  string            `json:"message"`
	PhotoURL string            `json:"photoUrl"`
}

// PostUpdate handles POST /api/v1/venues/{venueId}/jobs/{jobId}/updates.
// The type defaults to comment.
func (h *jobsHandler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	jobID := chi.URLParam(r, "jobId")
	var req postUpdateRequest
	if !decodeValid(w, r, &req) {
		return
	}

	actor := auth.UserFromContext(r.Context())
	var (
		u   *schema.JobUpdate
		err error
	)
	if req.Type == schema.UpdatePhoto {
		u, err = h.jobs.PostPhoto(r.Context(), actor, venueID, jobID, req.PhotoURL, req.Message)
	} else {
		u, err = h.jobs.PostComment(r.Context(), actor, venueID, jobID, req.Message)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "create", "job_update", u.ID, "venue_id", venueID, "job_id", jobID, "type", u.Type)
	writeJSON(w, http.StatusCreated, u)
}

// contractorJob is a job in the contractor list with its detail screen.
type contractorJob struct {
	job.VenueJob
	Path string `json:"path"`
}

// Contractor handles GET /api/v1/contractor/jobs.
func (h *jobsHandler) Contractor(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	jobs, err := h.jobs.ListForContractor(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]contractorJob, len(jobs))
	for i, j := range jobs {
		items[i] = contractorJob{VenueJob: j, Path: access.ContractorJobPath(j.VenueID, j.ID)}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": items})
}
