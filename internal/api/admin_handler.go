package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/metrics"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/seed"
)

// adminHandler serves the system admin surface.
type adminHandler struct {
	store    docstore.Store
	profiles *profile.Service
	metrics  *metrics.Metrics
}

func newAdminHandler(store docstore.Store, profiles *profile.Service, m *metrics.Metrics) *adminHandler {
	return &adminHandler{store: store, profiles: profiles, metrics: m}
}

// requireAdmin lets through callers whose profile role is system_admin.
func (h *adminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		p, err := h.profiles.Get(r.Context(), u.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if p == nil || p.Role != schema.RoleSystemAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "system admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetRole handles PUT /api/v1/admin/users/{userId}/role.
func (h *adminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "userId")
	var req roleRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := h.profiles.SetRole(r.Context(), uid, req.Role); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.profiles.Get(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "set_role", "profile", uid, "role", req.Role)
	writeJSON(w, http.StatusOK, p)
}

// Seed handles POST /api/v1/admin/seed.
func (h *adminHandler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := seed.Run(r.Context(), h.store, auth.UserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "seed", "venue", res.VenueID, "job_id", res.JobID)
	writeJSON(w, http.StatusCreated, res)
}

// Metrics handles GET /api/v1/admin/metrics.
func (h *adminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeError(w, http.StatusNotFound, "not_found", "metrics are not enabled")
		return
	}
	h.metrics.Handler()(w, r)
}
