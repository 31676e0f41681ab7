package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/job"
	"github.com/alecgard/venuedesk/internal/metrics"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/ratelimit"
	"github.com/alecgard/venuedesk/internal/venue"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	// Store is the policy-guarded document store; every request reaches it
	// with the caller in its context.
	Store          docstore.Store
	Provider       auth.Provider
	// Sessions tracks open identity streams so logout can end them. A fresh
	// registry is used when nil.
	Sessions       *auth.Sessions
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	DB             Pinger
	AllowedOrigins []string
	InviteTTL      time.Duration
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	if c := corsMiddleware(deps.AllowedOrigins); c != nil {
		r.Use(c)
	}
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	var venueOpts []venue.Option
	if deps.InviteTTL > 0 {
		venueOpts = append(venueOpts, venue.WithInviteTTL(deps.InviteTTL))
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = auth.NewSessions()
	}
	profiles := profile.NewService(deps.Store)
	authH := newAuthHandler(deps.Provider, sessions, profiles, deps.Metrics)
	me := newMeHandler(deps.Provider, sessions, deps.Store, profiles)
	admin := newAdminHandler(deps.Store, profiles, deps.Metrics)
	venues := newVenuesHandler(venue.NewService(deps.Store, venueOpts...))
	jobs := newJobsHandler(job.NewService(deps.Store))

	// Health check.
	r.Get("/health", healthHandler(deps.DB))

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// Well-known manifest.
	r.Get("/.well-known/venuedesk.json", WellKnownHandler)

	// Public (unauthenticated) routes.
	r.Post("/api/v1/auth/signup", authH.SignUp)
	r.Post("/api/v1/auth/login", authH.SignIn)
	r.Post("/api/v1/auth/logout", authH.SignOut)

	// Session-authed routes (bearer token + rate limiting).
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(auth.SessionMiddleware(deps.Provider))
		if deps.Limiter != nil {
			ar.Use(ratelimit.Middleware(deps.Limiter, func() {
				if deps.Metrics != nil {
					deps.Metrics.IncRateLimitRejection("user")
				}
			}))
		}

		// Identity session.
		ar.Get("/me", me.Get)
		ar.Patch("/me", me.Update)
		ar.Get("/me/route", me.Route)
		ar.Get("/me/stream", me.Stream)
		ar.Put("/me/role", me.SetRole)

		// Admin surface.
		ar.Route("/admin", func(adm chi.Router) {
			adm.Use(admin.requireAdmin)

			adm.Put("/users/{userId}/role", admin.SetRole)
			adm.Post("/seed", admin.Seed)
			adm.Get("/metrics", admin.Metrics)
		})

		// Manager surface.
		ar.Get("/venues", venues.List)
		ar.Post("/venues", venues.Create)
		ar.Get("/venues/{venueId}", venues.Get)
		ar.Patch("/venues/{venueId}", venues.Update)
		ar.Get("/venues/{venueId}/members", venues.Members)
		ar.Get("/venues/{venueId}/invites", venues.Invites)
		ar.Post("/venues/{venueId}/invites", venues.CreateInvite)
		ar.Get("/venues/{venueId}/jobs", jobs.List)
		ar.Post("/venues/{venueId}/jobs", jobs.Create)
		ar.Patch("/venues/{venueId}/jobs/{jobId}", jobs.Update)

		// Contractor surface.
		ar.Get("/contractor/jobs", jobs.Contractor)
		ar.Get("/venues/{venueId}/jobs/{jobId}", jobs.Get)
		ar.Get("/venues/{venueId}/jobs/{jobId}/updates", jobs.Updates)
		ar.Post("/venues/{venueId}/jobs/{jobId}/updates", jobs.PostUpdate)
	})

	return r
}

// healthHandler reports service status and, when a database is configured,
// whether it answers a ping.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, dbStatus, code := "ok", "not_configured", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status, dbStatus, code = "degraded", "unreachable", http.StatusServiceUnavailable
			} else {
				dbStatus = "ok"
			}
		}
		writeJSON(w, code, map[string]string{"status": status, "database": dbStatus})
	}
}
