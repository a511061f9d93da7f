package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/enot3481-eng/messenger-app/internal/api/middleware"
	"github.com/enot3481-eng/messenger-app/internal/config"
	"github.com/enot3481-eng/messenger-app/internal/directory"
	"github.com/enot3481-eng/messenger-app/internal/handlers"
	"github.com/enot3481-eng/messenger-app/internal/presence"
	"github.com/enot3481-eng/messenger-app/internal/relay"
)

// NewRouter creates and configures the HTTP router: the realtime
// channel at /ws plus the directory fallback and operational endpoints.
func NewRouter(cfg *config.Config, logger zerolog.Logger, router *relay.Router, dir *directory.Index, tracker *presence.Tracker) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - browser clients connect from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(dir, tracker)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Realtime channel; not rate limited, the read loop is the budget.
	r.Get("/ws", relay.Handler(router, cfg.ReadLimitBytes, logger))

	// Directory fallback + liveness, rate limited per client IP.
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.Get("/health", h.Health)
		r.Get("/users/tag/{tag}", h.UserByTag)
		r.Get("/users/search/{query}", h.SearchUsers)
	})

	return r
}
