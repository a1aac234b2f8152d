// Package server provides the HTTP API for nexus.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/config"
	"github.com/hyperjump/nexus/internal/generation"
	"github.com/hyperjump/nexus/internal/indexer"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/internal/storage"
)

// Retriever runs a retrieval dispatch. *dispatch.Dispatcher implements it.
type Retriever interface {
	Dispatch(ctx context.Context, q models.RetrievalQuery) (*models.Retrieval, error)
	Backends() []string
}

// Answerer generates answers from retrieved context. *generation.Service implements it.
type Answerer interface {
	HasGenerator() bool
	Ask(ctx context.Context, q models.RetrievalQuery) (*generation.Answer, error)
	CheckCompliance(ctx context.Context, question string) (*generation.ComplianceResult, error)
}

// WatchService reports the watched source directories.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the nexus API.
type Server struct {
	retriever Retriever
	answers   Answerer
	indexer   *indexer.Indexer
	rules     storage.RuleStore
	config    *config.ServerConfig
	logger    *zap.Logger
	watch     WatchService
	dataPaths []string
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatch exposes the watched directories in the status endpoint.
func WithWatch(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithDataPaths lists the on-disk index and database paths reported by the status endpoint.
func WithDataPaths(paths ...string) Option {
	return func(s *Server) { s.dataPaths = paths }
}

// NewServer creates a server with the given dependencies. answers, idx and
// rules may be nil; their endpoints then answer 501.
func NewServer(
	retriever Retriever,
	answers Answerer,
	idx *indexer.Indexer,
	rules storage.RuleStore,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		retriever: retriever,
		answers:   answers,
		indexer:   idx,
		rules:     rules,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/ask", s.handleAsk)
		r.Post("/compliance", s.handleCompliance)

		r.Post("/documents", s.handleIndexDocument)
		r.Delete("/documents", s.handleDeleteDocument)

		r.Post("/rules", s.handlePutRule)
		r.Post("/rules/import", s.handleImportRules)
		r.Get("/rules/{id}", s.handleGetRule)
		r.Delete("/rules/{id}", s.handleDeleteRule)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Strings("backends", s.retriever.Backends()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
