package usecase

import (
	"context"
	"log/slog"
	"time"

	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver ports.Scheduler
	run    func(ctx context.Context) error
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs. run is usually
// an incremental Pipeline.Run behind the application's single-flight guard.
func NewScheduler(driver ports.Scheduler, run func(ctx context.Context) error, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, run: run, logger: logging.Component(logger, "scheduler")}
}

// Start registers the run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.run == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run triggered", "at", trigger.Format(time.RFC3339))
		if err := s.run(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
