package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/venuedesk/internal/access"
	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/venue"
)

// venuesHandler groups the manager venue handlers.
type venuesHandler struct {
	venues *venue.Service
}

func newVenuesHandler(venues *venue.Service) *venuesHandler {
	return &venuesHandler{venues: venues}
}

// venueLinks are the manager screens reachable from a venue.
type venueLinks struct {
	Jobs      string `json:"jobs"`
	CreateJob string `json:"createJob"`
	Invite    string `json:"invite"`
}

type venueItem struct {
	*schema.Venue
	Links venueLinks `json:"links"`
}

// List handles GET /api/v1/venues.
func (h *venuesHandler) List(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	venues, err := h.venues.ListForUser(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]venueItem, len(venues))
	for i, v := range venues {
		items[i] = venueItem{Venue: v, Links: venueLinks{
			Jobs:      access.ManagerVenueJobsPath(v.ID),
			CreateJob: access.ManagerCreateJobPath(v.ID),
			Invite:    access.ManagerInvitePath(v.ID),
		}}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"venues":      items,
		"createVenue": access.ManagerCreateVenuePath(),
	})
}

// Create handles POST /api/v1/venues.
func (h *venuesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in venue.CreateInput
	if !decodeValid(w, r, &in) {
		return
	}

	v, err := h.venues.Create(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "create", "venue", v.ID)
	writeJSON(w, http.StatusCreated, v)
}

// Get handles GET /api/v1/venues/{venueId}.
func (h *venuesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venueId")
	v, err := h.venues.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if v == nil {
		writeServiceError(w, r, docstore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Update handles PATCH /api/v1/venues/{venueId}.
func (h *venuesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venueId")
	var in venue.UpdateInput
	if !decodeValid(w, r, &in) {
		return
	}

	v, err := h.venues.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "update", "venue", id)
	writeJSON(w, http.StatusOK, v)
}

// Members handles GET /api/v1/venues/{venueId}/members.
func (h *venuesHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.venues.ListMembers(r.Context(), chi.URLParam(r, "venueId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// Invites handles GET /api/v1/venues/{venueId}/invites.
func (h *venuesHandler) Invites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.venues.ListInvites(r.Context(), chi.URLParam(r, "venueId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invites": invites})
}

type createInviteRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// CreateInvite handles POST /api/v1/venues/{venueId}/invites. The plaintext
// token appears only in this response.
func (h *venuesHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	var req createInviteRequest
	if !decodeValid(w, r, &req) {
		return
	}

	created, err := h.venues.CreateInvite(r.Context(), auth.UserFromContext(r.Context()), venueID, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "create", "invite", created.Invite.ID, "venue_id", venueID)
	writeJSON(w, http.StatusCreated, created)
}
