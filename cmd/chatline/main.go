// Package main contains the entrypoint for the ChatLine server application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgard/chatline/internal/app"
	"github.com/edgard/chatline/internal/config"
	"github.com/edgard/chatline/internal/database"
	"github.com/edgard/chatline/internal/httpapi"
	"github.com/edgard/chatline/internal/ingest"
	"github.com/edgard/chatline/internal/logger"
	"github.com/edgard/chatline/internal/metrics"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// ingestion engine, HTTP API, scheduler), handles graceful shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db) // Ensure DB is closed on function exit
	store := database.NewStore(db, log)

	m := metrics.New(prometheus.DefaultRegisterer)
	engine := ingest.NewEngine(store, log, m)

	server := httpapi.NewServer(httpapi.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, store, engine, log)

	sched, err := app.NewScheduler(log, &cfg.Scheduler, store)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	application := app.NewApp(log, cfg, db, store, server, sched)

	log.Info("Starting server...")
	runErr := application.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Server run loop finished. Initiating shutdown...")

	// Check if the error is significant (not just context cancellation)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Server stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Server stopped gracefully.")
	return 0
}
