// Package app implements the core service functionality, lifecycle
// management, and component orchestration for the ChatLine server.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/chatline/internal/config"
	"github.com/edgard/chatline/internal/database"
	"github.com/edgard/chatline/internal/httpapi"
)

// App represents the main server application and manages its components' lifecycle.
type App struct {
	logger    *slog.Logger
	cfg       *config.Config
	db        *sqlx.DB
	store     database.Store
	server    *httpapi.Server
	scheduler *Scheduler
}

// NewApp creates a new instance of the application with all required dependencies.
func NewApp(
	logger *slog.Logger,
	cfg *config.Config,
	db *sqlx.DB,
	store database.Store,
	server *httpapi.Server,
	scheduler *Scheduler,
) *App {
	return &App{
		logger:    logger.With("component", "orchestrator"),
		cfg:       cfg,
		db:        db,
		store:     store,
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts the application and all its components, handling graceful
// shutdown on context cancellation. It returns an error if any component
// fails during startup or execution.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP API server...")
		if err := a.server.Run(gCtx); err != nil {
			return err
		}
		a.logger.Info("HTTP API server stopped.")
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Starting scheduler...")
		if err := a.scheduler.Start(); err != nil {
			a.logger.Error("Failed to start scheduler", "error", err)
			return err
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	a.logger.Info("Orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
