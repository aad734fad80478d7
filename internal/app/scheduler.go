package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/chatline/internal/config"
	"github.com/edgard/chatline/internal/database"
)

// ScheduledTaskFunc is the signature of a runnable scheduled task.
type ScheduledTaskFunc func(ctx context.Context) error

// Scheduler manages scheduled tasks using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	tasks     map[string]scheduledTask
	mu        sync.Mutex
	running   bool
}

type scheduledTask struct {
	schedule string
	run      ScheduledTaskFunc
}

// NewScheduler creates a scheduler with the maintenance tasks derived from
// configuration. Tasks with an empty schedule are disabled.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, store database.Store) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	tasks := map[string]scheduledTask{
		"db_maintenance": {
			schedule: cfg.MaintenanceSchedule,
			run:      newMaintenanceTask(log, store),
		},
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		tasks:     tasks,
	}, nil
}

// Start schedules and starts all enabled tasks.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduledCount := 0
	for taskName, task := range s.tasks {
		if task.schedule == "" {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(task.schedule, false),
			gocron.NewTask(
				func(ctx context.Context, name string, run ScheduledTaskFunc) {
					s.logger.Info("Running scheduled task", "task_name", name)
					startTime := time.Now()
					if taskErr := run(ctx); taskErr != nil {
						s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
					}
					s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				taskName,
				task.run,
			),
			gocron.WithName(taskName),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", task.schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", task.schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}

// newMaintenanceTask returns a task that runs periodic database maintenance.
func newMaintenanceTask(logger *slog.Logger, store database.Store) ScheduledTaskFunc {
	log := logger.With("task", "db_maintenance")

	return func(ctx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		if err := store.RunSQLMaintenance(timeoutCtx); err != nil {
			log.ErrorContext(ctx, "Database maintenance failed", "error", err)
			return fmt.Errorf("database maintenance failed: %w", err)
		}
		return nil
	}
}
