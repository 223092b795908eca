// Package web serves the enrichment UI and JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/orgenrich/internal/config"
	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/web/middleware"
)

// errRateLimited is reported to clients over their request allowance.
var errRateLimited = errors.New("rate limit exceeded")

// Server is the HTTP server for the enrichment application.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	stopSweep context.CancelFunc
}

// NewServer creates a Server with its middleware and routes installed.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service:   service,
		cfg:       cfg,
		router:    chi.NewRouter(),
		stopSweep: cancel,
	}
	s.setupMiddleware(ctx)
	s.setupRoutes(ctx)
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(ctx, s.cfg.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes. Enrichment routes are bounded by
// the run timeout inside the service rather than the request timeout.
func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/", s.handleIndex)
		r.Get("/api/runs/{runID}", s.handleGetRun)
		r.Get("/api/runs/{runID}/download", s.handleDownload)
		r.Get("/api/reference", s.handleReference)
	})

	s.router.Group(func(r chi.Router) {
		if s.cfg.Rate.Enabled {
			r.Use(s.rateLimit(ctx, s.cfg.Rate.EnrichLimit))
		}

		r.Post("/enrich", s.handleEnrichPage)
		r.Post("/api/enrich", s.handleEnrich)
		r.Post("/api/preview", s.handlePreview)
	})

	s.router.Post("/api/reference/reload", s.handleReloadReference)
}

// rateLimit builds a per-IP limiter whose idle clients are swept until the
// server shuts down.
func (s *Server) rateLimit(ctx context.Context, perMinute int) func(http.Handler) http.Handler {
	rl := middleware.NewRateLimiter(perMinute, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errRateLimited)
	}))
	go rl.Run(ctx)
	return rl.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopSweep()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "path", r.URL.Path, "error", err)
	}
}
