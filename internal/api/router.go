package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zpx01/video-scraper/internal/api/handler"
	mw "github.com/zpx01/video-scraper/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured (§6).
func NewRouter(
	jobHandler *handler.JobHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(5 * time.Minute))

	// CORS for browser clients
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		// Job operations
		r.Post("/jobs", jobHandler.Submit)
		r.Get("/jobs", jobHandler.List)
		r.Get("/jobs/{jobID}", jobHandler.Get)
		r.Get("/jobs/{jobID}/status", jobHandler.Status)

		// Pipeline control
		r.Post("/stop", jobHandler.Stop)
		r.Get("/stats", jobHandler.Stats)
		r.Get("/system", healthHandler.System)
	})

	return r
}
