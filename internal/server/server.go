// Package server exposes the follow-up orchestrator over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"followup-orchestrator/internal/common/config"
	"followup-orchestrator/internal/followup/orchestrator"
	"followup-orchestrator/internal/models"
)

// FollowUpProcessor is the orchestration entry point the API fronts.
type FollowUpProcessor interface {
	ProcessFollowUp(ctx context.Context, req *orchestrator.Request) (*orchestrator.Response, error)
}

// ConversationReader serves the conversation history endpoint. The
// original query is resolved first so absent and foreign-owned queries
// get the same not-found answer as the follow-up endpoint.
type ConversationReader interface {
	GetOriginalQuery(ctx context.Context, queryID, userID string) (*models.OriginalQuery, error)
	ListMessages(ctx context.Context, queryID, userID string) ([]models.Message, error)
}

// Server is the HTTP surface over the orchestrator.
type Server struct {
	orch   FollowUpProcessor
	store  ConversationReader
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

func NewServer(orch FollowUpProcessor, store ConversationReader, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		orch:   orch,
		store:  store,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/follow-up", s.handleFollowUp)
	r.Get("/api/messages", s.handleListMessages)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
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
