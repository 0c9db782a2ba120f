// Package web provides the HTTP server and handlers for the log artifact and
// notebook API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/JonMunkholm/taska/internal/config"
	"github.com/JonMunkholm/taska/internal/jobs"
	"github.com/JonMunkholm/taska/internal/notebook"
	"github.com/JonMunkholm/taska/internal/web/middleware"
)

// Server is the HTTP server for the API.
type Server struct {
	cfg       *config.Config
	jobs      *jobs.Manager
	notebooks *notebook.Service
	router    *chi.Mux
	server    *http.Server
	limiter   *rateLimiter
}

// NewServer creates a new Server instance. A nil clock uses the real clock.
func NewServer(cfg *config.Config, mgr *jobs.Manager, notebooks *notebook.Service, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Server{
		cfg:       cfg,
		jobs:      mgr,
		notebooks: notebooks,
		router:    chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(clock, cfg.Rate.RequestsPerMinute, rateWindow)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(securityHeaders)

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Route("/logs", func(r chi.Router) {
			// Artifact jobs
			r.Post("/{date}", s.handleSubmitLogJob)
			r.Get("/status/{id}", s.handleLogJobStatus)
			r.Get("/file/{id}", s.handleLogJobFile)
			r.Get("/stats", s.handleLogJobStats)

			// Direct file access
			r.Get("/{date}", s.handleLogRotation)
			r.Get("/all/{date}", s.handleLogMerged)
		})

		r.Route("/notebooks", func(r chi.Router) {
			r.Get("/", s.handleListNotebooks)
			r.Get("/full", s.handleListNotebooksFull)
			r.Post("/", s.handleCreateNotebook)
			r.Get("/{id}", s.handleGetNotebook)
			r.Put("/{id}", s.handleUpdateNotebook)
			r.Delete("/{id}", s.handleDeleteNotebook)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout, // zero keeps large artifact downloads open
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter's sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON and plain-text responses only; nothing should ever load from them
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
