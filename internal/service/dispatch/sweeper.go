package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"asset-forge/internal/domain"
)

// Sweeper deletes terminal jobs older than the retention window on a cron
// schedule.
type Sweeper struct {
	cron      *cron.Cron
	jobs      domain.JobRepository
	retention time.Duration
	schedule  string
	now       func() time.Time
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper. schedule accepts standard cron expressions
// and descriptors such as "@every 10m".
func NewSweeper(jobs domain.JobRepository, retention time.Duration, schedule string, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &Sweeper{
		cron:      cron.New(),
		jobs:      jobs,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		logger:    logger.With("component", "retention"),
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn("retention sweep failed", "error", err)
		}
	}); err != nil {
		return domain.ErrValidation("invalid retention schedule %q: %v", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started", "schedule", s.schedule, "retention", s.retention)
	return nil
}

// Stop stops the scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("retention sweeper stopped")
}

// Sweep deletes terminal jobs completed before now minus the retention
// window. A non-positive retention disables deletion.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	n, err := s.jobs.DeleteTerminalBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired jobs deleted", "count", n)
	}
	return n, nil
}
