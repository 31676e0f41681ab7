package api

import (
	"net/http"

	"github.com/alecgard/venuedesk/internal/access"
)

// wellKnownManifest is served at /.well-known/venuedesk.json. Navigation lists
// the client surfaces that /api/v1/me/route points at.
var wellKnownManifest = map[string]interface{}{
	"name":        "Venuedesk",
	"description": "Venue and job coordination for managers and contractors",
	"version":     "0.1.0",
	"api_base":    "/api/v1",
	"auth": map[string]string{
		"type":   "bearer",
		"header": "Authorization",
		"signup": "/api/v1/auth/signup",
		"login":  "/api/v1/auth/login",
	},
	"endpoints": map[string]string{
		"me":              "/api/v1/me",
		"session_stream":  "/api/v1/me/stream",
		"venues":          "/api/v1/venues",
		"contractor_jobs": "/api/v1/contractor/jobs",
		"admin":           "/api/v1/admin",
	},
	"navigation": map[string]string{
		"sign_in":      access.SignIn.Path(),
		"sign_up":      access.SignUpPath(),
		"admin":        access.Admin.Path(),
		"manager":      access.Manager.Path(),
		"contractor":   access.Contractor.Path(),
		"create_venue": access.ManagerCreateVenuePath(),
	},
	"health": "/health",
}

// WellKnownHandler returns the venuedesk well-known manifest.
func WellKnownHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wellKnownManifest)
}
