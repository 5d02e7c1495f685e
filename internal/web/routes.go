package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/duckgeunpark/IWT/internal/web/handlers"
	"github.com/duckgeunpark/IWT/internal/web/middleware"
)

func (s *Server) setupRoutes(deps Deps) {
	// Create handlers
	photosHandler := handlers.NewPhotosHandler(deps.Photos, deps.Storage, deps.Enricher, deps.Provider)
	postsHandler := handlers.NewPostsHandler(deps.Posts, deps.Photos, deps.Storage, deps.Assembler, deps.Planner, deps.Provider)
	locationsHandler := handlers.NewLocationsHandler(deps.Enricher)
	readyHandler := handlers.NewReadyHandler(deps.DB, deps.Storage)

	// Health checks (no auth required)
	s.router.Get("/api/health", handlers.HealthCheck)
	s.router.Get("/api/ready", readyHandler.Ready)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// All routes require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Verifier))

			// Photos
			r.Post("/photos/upload-url", photosHandler.UploadURL)
			r.Post("/photos/{photoID}/enrich", photosHandler.Enrich)

			// Posts
			r.Post("/posts", postsHandler.Create)
			r.Post("/posts/preview", postsHandler.Preview)
			r.Get("/posts", postsHandler.List)
			r.Get("/posts/{postID}", postsHandler.Get)
			r.Delete("/posts/{postID}", postsHandler.Delete)

			// Locations
			r.Post("/locations/enhance", locationsHandler.Enhance)
		})
	})
}
