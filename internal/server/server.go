// Package server provides the HTTP API of the adaptive learning engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ganitha/ganitha/internal/config"
	"github.com/ganitha/ganitha/internal/engine"
	"github.com/ganitha/ganitha/internal/storage"
)

// Server is the HTTP server for the learning engine API.
type Server struct {
	engine  *engine.Engine
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. storage may be nil.
func NewServer(eng *engine.Engine, st storage.Storage, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		engine:  eng,
		storage: st,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/answers", s.handleRecordAnswer)

	r.Route("/api/v1/students/{studentID}", func(r chi.Router) {
		r.Get("/recommendations", s.handleRecommend)
		r.Get("/mastery/{topicID}", s.handleMastery)
		r.Get("/style", s.handleStyle)
		r.Get("/summary", s.handleSummary)
	})

	r.Post("/api/v1/contents", s.handleIngestContent)
	r.Get("/api/v1/contents/search", s.handleSearchCatalog)
	r.Get("/api/v1/contents/{id}", s.handleGetContent)
	r.Delete("/api/v1/contents/{id}", s.handleDeleteContent)

	r.Post("/api/v1/topics", s.handleRegisterTopic)
	r.Get("/api/v1/topics", s.handleListTopics)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
