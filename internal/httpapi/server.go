// Package httpapi exposes the HTTP transport boundary: webhook intake,
// message creation, and conversation listing.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/chatline/internal/database"
	"github.com/edgard/chatline/internal/ingest"
)

// Server wraps the HTTP listener and its handlers.
type Server struct {
	logger          *slog.Logger
	store           database.Store
	engine          *ingest.Engine
	srv             *http.Server
	shutdownTimeout time.Duration
}

// Config holds the listener settings for the HTTP server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates the API server with all routes registered.
func NewServer(cfg Config, store database.Store, engine *ingest.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		logger: logger.With("component", "httpapi"),
		store:  store,
		engine: engine,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleCreateMessage).Methods(http.MethodPost)
	api.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.shutdownTimeout = cfg.ShutdownTimeout

	return s
}

// Handler returns the configured HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run starts the listener and blocks until the context is cancelled or the
// listener fails. On cancellation the server is shut down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error during HTTP server shutdown", "error", err)
			return err
		}
		s.logger.Info("HTTP server stopped gracefully.")
		return nil

	case err := <-errCh:
		if err != nil {
			s.logger.Error("HTTP server stopped unexpectedly", "error", err)
		}
		return err
	}
}
