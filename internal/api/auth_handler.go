package api

import (
	"net/http"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/metrics"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/schema"
)

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	provider auth.Provider
	sessions *auth.Sessions
	profiles *profile.Service
	metrics  *metrics.Metrics
}

func newAuthHandler(provider auth.Provider, sessions *auth.Sessions, profiles *profile.Service, m *metrics.Metrics) *authHandler {
	return &authHandler{provider: provider, sessions: sessions, profiles: profiles, metrics: m}
}

type signUpRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token   string       `json:"token"`
	User    userView     `json:"user"`
	Profile *schema.User `json:"profile"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func viewUser(u *auth.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// SignUp handles POST /api/v1/auth/signup.
func (h *authHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeValid(w, r, &req) {
		return
	}

	token, u, err := h.provider.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.recordFailure()
		writeServiceError(w, r, err)
		return
	}
	h.recordSuccess()
	h.respondWithSession(w, r, http.StatusCreated, token, u)
}

// SignIn handles POST /api/v1/auth/login.
func (h *authHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeValid(w, r, &req) {
		return
	}

	token, u, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordFailure()
		writeServiceError(w, r, err)
		return
	}
	h.recordSuccess()
	h.respondWithSession(w, r, http.StatusOK, token, u)
}

// respondWithSession makes sure the new user has a profile before returning
// the session.
func (h *authHandler) respondWithSession(w http.ResponseWriter, r *http.Request, status int, token string, u *auth.User) {
	ctx := auth.ContextWithUser(r.Context(), u)
	p, err := h.profiles.Ensure(ctx, u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, User: *viewUser(u), Profile: p})
}

// SignOut handles POST /api/v1/auth/logout. Open identity streams for the
// session are signed out with it.
func (h *authHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.sessions.SignOut(r.Context(), h.provider, token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *authHandler) recordSuccess() {
	if h.metrics != nil {
		h.metrics.IncAuthSuccess("password")
	}
}

func (h *authHandler) recordFailure() {
	if h.metrics != nil {
		h.metrics.IncAuthFailure("password")
	}
}
