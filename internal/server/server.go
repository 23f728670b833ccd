// Package server provides the HTTP API for notevec.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/notevec/internal/config"
	"github.com/hyperjump/notevec/internal/gate"
	"github.com/hyperjump/notevec/internal/indexer"
	"github.com/hyperjump/notevec/internal/search"
	"github.com/hyperjump/notevec/internal/storage"
	"github.com/hyperjump/notevec/internal/vector"
	"go.uber.org/zap"
)

// ReadinessReporter exposes the cached readiness of the embedding service.
type ReadinessReporter interface {
	State() (gate.State, error)
}

// Server is the HTTP server for the notevec API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	store   *vector.Store
	meta    storage.MetaStore
	gate    ReadinessReporter
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server

	// background rebuilds outlive the request that started them
	bgCtx      context.Context
	bgCancel   context.CancelFunc
	bgWG       sync.WaitGroup
	rebuilding atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithReadiness reports the embedding gate state on /api/v1/status.
func WithReadiness(r ReadinessReporter) Option {
	return func(s *Server) { s.gate = r }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store *vector.Store,
	meta storage.MetaStore,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine:   engine,
		indexer:  idx,
		store:    store,
		meta:     meta,
		config:   cfg,
		logger:   logger,
		bgCtx:    ctx,
		bgCancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)

		r.Post("/index/rebuild", s.handleRebuild)
		r.Post("/index/cancel", s.handleCancel)
		r.Delete("/index", s.handleClear)

		r.Post("/documents/index", s.handleIndexDocument)
		r.Delete("/documents", s.handleRemoveDocument)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server and cancels a background rebuild.
func (s *Server) Stop(ctx context.Context) error {
	s.bgCancel()
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		s.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// StartRebuild runs a full rebuild in the background. It returns false when one is already running.
func (s *Server) StartRebuild() bool {
	if s.indexer.State() != indexer.StateIdle || !s.rebuilding.CompareAndSwap(false, true) {
		return false
	}
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		defer s.rebuilding.Store(false)
		summary, err := s.indexer.RebuildVault(s.bgCtx, nil)
		if err != nil {
			s.logger.Warn("background rebuild failed", zap.Error(err))
			return
		}
		s.logger.Info("background rebuild finished",
			zap.String("run_id", summary.RunID),
			zap.Int("documents", summary.Processed),
			zap.Int("chunks", summary.Chunks),
			zap.Duration("duration", summary.Duration),
		)
	}()
	return true
}
