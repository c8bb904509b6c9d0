package api

import (
	"net/http"

	"afps-server/internal/signaling"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Store: signaling.New(signaling.Config{...}),
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Store is the signaling registry (required).
	Store *signaling.Store

	// BearerToken, if non-empty, requires every /session and /webrtc/* call
	// to carry a matching `Authorization: Bearer <token>` header.
	BearerToken string

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default localhost-only origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	store *signaling.Store
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// No network listeners are opened, so it can be used in tests with
// httptest.NewServer. When cfg.RateLimiter is nil it creates an
// IPRateLimiter, whose cleanup goroutine starts immediately.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{store: cfg.Store}

	r.Group(func(r chi.Router) {
		if cfg.BearerToken != "" {
			r.Use(BearerAuthMiddleware(cfg.BearerToken))
		}

		r.Post("/session", h.handleCreateSession)
		r.Route("/webrtc", func(r chi.Router) {
			r.Post("/connect", h.handleCreateConnection)
			r.Post("/answer", h.handleApplyAnswer)
			r.Post("/candidate", h.handleAddCandidate)
			r.Get("/candidates", h.handleDrainCandidates)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

// GetRateLimiterFromRouter returns cfg.RateLimiter when it is set. Otherwise
// it builds a new IPRateLimiter from the config, which is not the instance a
// router built by NewRouter(cfg) uses.
func GetRateLimiterFromRouter(cfg RouterConfig) *IPRateLimiter {
	if cfg.RateLimiter != nil {
		return cfg.RateLimiter
	}
	rateLimitCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}
	return NewIPRateLimiter(rateLimitCfg)
}
