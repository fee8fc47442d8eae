// Package server provides the HTTP API for otoshimono.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/config"
	"github.com/hyperjump/otoshimono/internal/keyword"
	"github.com/hyperjump/otoshimono/internal/matching"
	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

// Matcher is the part of the matching engine the API drives.
type Matcher interface {
	Spawn(ctx context.Context, item *models.Item, itemType models.ItemType)
	Preview(ctx context.Context, item *models.Item, itemType models.ItemType) []matching.MatchCandidate
}

// Server is the HTTP server for the lost-and-found API.
type Server struct {
	storage storage.Storage
	index   keyword.ItemIndex
	matcher Matcher
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	storage storage.Storage,
	index keyword.ItemIndex,
	matcher Matcher,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		storage: storage,
		index:   index,
		matcher: matcher,
		config:  cfg,
		logger:  logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if sc := s.config.Server; !sc.RateLimitDisabled && sc.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(sc.RateLimitRequests, sc.RateLimitWindow))
		}

		r.Get("/status", s.handleStatus)

		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/read", s.handleMarkNotificationRead)

		r.Post("/items", s.handleCreateItem)
		r.Get("/items/{id}", s.handleGetItem)
		r.Patch("/items/{id}/status", s.handleUpdateItemStatus)
		r.Get("/items/{id}/matches", s.handlePreviewMatches)

		r.Get("/campuses/{campusID}/items/search", s.handleSearchItems)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
