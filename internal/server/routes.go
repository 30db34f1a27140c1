package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.JobsHandler)  // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutes)   // GET/DELETE /{id}

	// API routes - Services
	mux.HandleFunc("/api/services", s.app.ServiceHandler.ServicesHandler) // GET (list), POST (create)
	mux.HandleFunc("/api/services/", s.app.ServiceHandler.ServiceRoutes)  // CRUD /{id} + scale routes

	// API routes - System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// 404 for everything else
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
