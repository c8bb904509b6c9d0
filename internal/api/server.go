package api

import (
	"log"
	"net/http"

	"afps-server/internal/signaling"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP signaling server: session issuance and WebRTC
// connect/answer/candidate endpoints backed by a signaling.Store, with the
// authoritative tick loop running independently underneath it.
type Server struct {
	store       *signaling.Store
	router      *chi.Mux
	rateLimiter *IPRateLimiter
}

// NewServer creates a new API server with default production configuration.
//
// The rate limiter's cleanup goroutine starts here; the network listener is
// not opened until Start() is called.
//
// For testing HTTP endpoints without a listener, use NewRouter() directly.
func NewServer(store *signaling.Store, bearerToken string) *Server {
	s := &Server{store: store}

	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	s.router = NewRouter(RouterConfig{
		Store:       store,
		BearerToken: bearerToken,
		RateLimiter: s.rateLimiter,
	})

	return s
}

// Start begins the HTTP server. Call this method only once; to stop the
// server, signal the process (the underlying tick loop is started/stopped
// independently by the caller).
func (s *Server) Start(addr string) error {
	log.Printf("signaling server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop performs graceful shutdown of background workers owned by the server
// itself (the HTTP rate limiter's cleanup goroutine). The tick loop and
// signaling store are owned and stopped by the caller.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
