// Package main contains the entrypoint for the batch payload processor.
// It ingests a directory of raw webhook payload documents and, in watch
// mode, keeps consuming new documents as they are dropped into the
// directory.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/edgard/chatline/internal/config"
	"github.com/edgard/chatline/internal/database"
	"github.com/edgard/chatline/internal/ingest"
	"github.com/edgard/chatline/internal/logger"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	payloadDir := flag.String("dir", "", "Payload directory (overrides config)")
	watch := flag.Bool("watch", false, "Keep watching the directory for new payload files")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)

	dir := cfg.Ingest.PayloadDir
	if *payloadDir != "" {
		dir = *payloadDir
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	engine := ingest.NewEngine(store, log, nil)

	log.Info("Processing payload directory", "dir", dir)
	summary, err := engine.ProcessDirectory(ctx, dir)
	if err != nil {
		log.Error("Batch processing failed", "dir", dir, "error", err)
		return 1
	}
	log.Info("All payloads processed",
		"processed", summary.Processed,
		"applied", summary.Applied,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	if !*watch {
		return 0
	}

	if err := watchDirectory(ctx, log, engine, dir); err != nil && ctx.Err() == nil {
		log.Error("Watch loop failed", "dir", dir, "error", err)
		return 1
	}

	log.Info("Watch loop stopped.")
	return 0
}

// watchDirectory consumes payload files as they appear until the context is
// cancelled. Failures on individual files are logged and the loop continues.
func watchDirectory(ctx context.Context, log *slog.Logger, engine *ingest.Engine, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Info("Watching payload directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			res, err := engine.ProcessFile(ctx, event.Name)
			if err != nil {
				log.Warn("Failed to ingest payload file, continuing",
					"file", filepath.Base(event.Name), "error", err)
				continue
			}
			log.Info("Payload processed",
				"file", filepath.Base(event.Name), "applied", res.Applied, "reason", res.Reason)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error, continuing", "error", err)
		}
	}
}
