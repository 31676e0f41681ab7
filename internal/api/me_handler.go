package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecgard/venuedesk/internal/access"
	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/schema"
	"github.com/alecgard/venuedesk/internal/session"
)

// streamHeartbeat keeps idle event streams open through proxies.
const streamHeartbeat = 25 * time.Second

// meHandler serves the signed-in user's identity session.
type meHandler struct {
	provider auth.Provider
	sessions *auth.Sessions
	store    docstore.Store
	profiles *profile.Service
}

func newMeHandler(provider auth.Provider, sessions *auth.Sessions, store docstore.Store, profiles *profile.Service) *meHandler {
	return &meHandler{provider: provider, sessions: sessions, store: store, profiles: profiles}
}

// stateView is the wire form of a session.State plus where it routes.
type stateView struct {
	User      *userView          `json:"user"`
	Profile   *schema.User       `json:"profile"`
	Loading   bool               `json:"loading"`
	Error     string             `json:"error,omitempty"`
	Route     access.Destination `json:"route"`
	RoutePath string             `json:"routePath,omitempty"`
}

func viewState(s session.State) stateView {
	dest := access.Route(s)
	v := stateView{
		User:      viewUser(s.User),
		Profile:   s.Profile,
		Loading:   s.Loading,
		Route:     dest,
		RoutePath: dest.Path(),
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

// current loads the caller's state, creating the profile on first use.
func (h *meHandler) current(r *http.Request) (session.State, error) {
	u := auth.UserFromContext(r.Context())
	p, err := h.profiles.Ensure(r.Context(), u)
	if err != nil {
		return session.State{}, err
	}
	return session.State{User: u, Profile: p}, nil
}

// Get handles GET /api/v1/me.
func (h *meHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.current(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewState(s))
}

// Route handles GET /api/v1/me/route.
func (h *meHandler) Route(w http.ResponseWriter, r *http.Request) {
	s, err := h.current(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dest := access.Route(s)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route": dest,
		"path":  dest.Path(),
	})
}

type updateMeRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

// Update handles PATCH /api/v1/me.
func (h *meHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	u := auth.UserFromContext(r.Context())
	if err := h.profiles.UpdateDisplayName(r.Context(), u.ID, req.DisplayName); err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "update", "profile", u.ID)
	h.Get(w, r)
}

type roleRequest struct {
	Role schema.Role `json:"role" validate:"required"`
}

// SetRole handles PUT /api/v1/me/role. The policy layer decides whether a
// user may change their own role.
func (h *meHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeValid(w, r, &req) {
		return
	}
	u := auth.UserFromContext(r.Context())
	if err := h.profiles.SetRole(r.Context(), u.ID, req.Role); err != nil {
		writeServiceError(w, r, err)
		return
	}
	auditLog(r, "set_role", "profile", u.ID, "role", req.Role)
	h.Get(w, r)
}

// Stream handles GET /api/v1/me/stream. It restores the caller's session
// into a client, runs an identity session manager over it, and writes every
// state as a server-sent event until the client disconnects or the session
// ends. A logout for the same token signs the client out; a session revoked
// elsewhere is noticed on the next heartbeat. Either way the signed-out state
// is sent last.
func (h *meHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	token := auth.TokenFromContext(ctx)
	client := auth.NewClient(h.provider)
	if _, err := client.Restore(ctx, token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	untrack := h.sessions.Track(token, client)
	defer untrack()

	mgr := session.NewManager(ctx, client, h.store)
	defer mgr.Close()
	states, unsubscribe := mgr.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := h.provider.LookupSession(ctx, token); errors.Is(err, auth.ErrInvalidSession) {
				_ = mgr.SignOut(ctx)
				continue
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case s, ok := <-states:
			if !ok {
				return
			}
			payload, err := json.Marshal(viewState(s))
			if err != nil {
				slog.Error("encoding session state", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload); err != nil {
				return
			}
			_ = rc.Flush()
			if !s.Loading && s.User == nil {
				return
			}
		}
	}
}
