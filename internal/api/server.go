// Package api exposes the HTTP surface of the monitor: event ingest,
// event queries, aggregate stats, reports, and auth.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nelssec/appguard/internal/auth"
	"github.com/nelssec/appguard/internal/config"
	"github.com/nelssec/appguard/internal/engine"
	"github.com/nelssec/appguard/internal/models"
	"github.com/nelssec/appguard/internal/store"
)

// EventStore is the persistence surface the handlers need.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.SecurityEvent) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error)
	ListEvents(ctx context.Context, filters store.ListEventFilters) ([]models.SecurityEvent, int, error)
	ListTopRiskEvents(ctx context.Context, limit int) ([]models.SecurityEvent, error)
	GetStats(ctx context.Context) (*models.EventStats, error)
	Ping(ctx context.Context) error
}

// StatsCache fronts GetStats with a short-lived cached snapshot. A nil
// cache disables caching; every read goes to the database.
type StatsCache interface {
	GetStats(ctx context.Context) (*models.EventStats, error)
	SetStats(ctx context.Context, stats *models.EventStats) error
	InvalidateStats(ctx context.Context) error
}

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	http   *http.Server
	logger *slog.Logger

	events EventStore
	engine *engine.Engine
	cache  StatsCache

	authService *auth.Service
	userStore   auth.UserStore
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStatsCache enables the Redis-backed stats cache.
func WithStatsCache(cache StatsCache) ServerOption {
	return func(s *Server) {
		s.cache = cache
	}
}

func NewServer(cfg *config.Config, st *store.Store, eng *engine.Engine, opts ...ServerOption) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		events: st,
		engine: eng,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.userStore = auth.NewPostgresUserStore(st.DB())
	s.authService = auth.NewService(auth.Config{
		JWTSecret:          cfg.Auth.JWTSecret,
		AccessTokenExpiry:  cfg.Auth.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.Auth.RefreshTokenExpiry,
	}, s.userStore)

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// AuthService exposes the server's auth layer for admin bootstrap.
func (s *Server) AuthService() *auth.Service {
	return s.authService
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(s.corsMiddleware())
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowOrigin := s.cfg.Server.CORSAllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
		s.logger.Warn("CORS Allow-Origin set to '*' - configure server.cors_allow_origin in production")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh", s.refresh)

		// Ingest is open to device SDKs; they authenticate at the
		// transport layer, not with user tokens.
		r.Post("/events", s.ingestEvent)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)

			r.Get("/auth/me", s.getCurrentUser)

			r.Get("/events", s.listEvents)
			r.Get("/events/{eventID}", s.getEvent)
			r.Get("/stats", s.getStats)
			r.Get("/reports/summary", s.summaryReport)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Post("/users", s.createUser)
			})
		})
	})
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *apiMeta    `json:"meta,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiMeta struct {
	Total  int `json:"total,omitempty"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondJSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *apiMeta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": s.engine.Ready(),
	})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db_unavailable", "Database not available")
		return
	}
	if !s.engine.Ready() {
		respondError(w, http.StatusServiceUnavailable, "model_unavailable", "Anomaly model not loaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
