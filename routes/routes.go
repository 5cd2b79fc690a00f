package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/realtime-jwtauth/app"
	"github.com/upb/realtime-jwtauth/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := []string{"*"}
	if deps.Config != nil && len(deps.Config.Server.CORSAllowedOrigins) > 0 {
		origins = deps.Config.Server.CORSAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	var db handlers.HealthChecker
	if deps.DB != nil {
		db = deps.DB
	}
	var sessions handlers.SessionReader
	if deps.Sessions != nil {
		sessions = deps.Sessions
	}

	health := handlers.NewHealthHandler(db, deps.Hub, deps.Logger)
	conns := handlers.NewConnectionHandler(deps.Hub, sessions, deps.Logger)

	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/connections", func(r chi.Router) {
		r.Post("/", conns.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", conns.HandleGet)
			r.Delete("/", conns.HandleDelete)
			r.Get("/session", conns.HandleGetSession)
			r.Post("/anonymous/{controller}/authorize", conns.HandleAuthorize)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"The requested resource was not found"}`))
	})

	return r
}
