// Package router assembles the HTTP surface of the practice API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/consultare/practice-api/internal/conflicts"
	httpmiddleware "github.com/consultare/practice-api/internal/http/middleware"
	"github.com/consultare/practice-api/internal/tasks"
	"github.com/consultare/practice-api/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ConflictsHandler   *conflicts.Handler
	TasksHandler       *tasks.Handler
	HealthHandler      http.Handler
	MetricsHandler     http.Handler
	DoctorJWTSecret    string
	CORSAllowedOrigins []string

	// RateLimitPerSecond enables per-doctor rate limiting on the
	// practitioner routes when > 0.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		if cfg.HealthHandler != nil {
			public.Handle("/health", cfg.HealthHandler)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Practitioner routes, scoped to the authenticated doctor.
	r.Group(func(doctor chi.Router) {
		doctor.Use(httpmiddleware.DoctorJWT(cfg.DoctorJWTSecret))
		if cfg.RateLimitPerSecond > 0 {
			doctor.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}
		if cfg.ConflictsHandler != nil {
			doctor.Mount("/schedule/conflicts", cfg.ConflictsHandler.Routes())
		}
		if cfg.TasksHandler != nil {
			doctor.Mount("/tasks", cfg.TasksHandler.Routes())
		}
	})

	return r
}
