package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/facegate/internal/web/handlers"
	"github.com/kozaktomas/facegate/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.service, s.log.Named("faces"))
	healthHandler := handlers.NewHealthHandler(s.store, s.log.Named("health"))

	// Probes and metrics are never rate limited
	s.router.Get("/health", handlers.HealthCheck)
	s.router.Get("/ready", healthHandler.Ready)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.config.Server.RateLimit))
		r.Use(chiMiddleware.RequestSize(s.config.Server.MaxBodyBytes))

		r.Post("/enroll_face", facesHandler.Enroll)
		r.Post("/verify_face", facesHandler.Verify)
	})
}
