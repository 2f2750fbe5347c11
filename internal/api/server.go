package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.ExecuteRun)
			r.Get("/", h.ListRuns)
			r.Get("/{runID}", h.GetRun)
			r.Get("/{runID}/measurements", h.GetRunMeasurements)
			r.Get("/{runID}/snapshot", h.GetRunSnapshot)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/daily/{date}", h.GetDailySnapshot)
			r.Post("/daily/{date}/reset", h.ResetDailySnapshot)
		})

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", h.ListTargets)
			r.Put("/", h.UpsertTarget)
			r.Delete("/{schema}/{table}", h.DeleteTarget)
		})
	})

	return r
}
