// Package scheduler runs the gateway's periodic housekeeping.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const pruneTimeout = 5 * time.Minute

// Pruner deletes request log rows older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Config holds cron expressions (with seconds) and job parameters.
type Config struct {
	PruneSchedule string
	LogRetention  time.Duration
}

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	pruner Pruner
	cfg    Config
	logger *zap.Logger
}

// New creates a scheduler and registers its jobs. An invalid expression is returned as an error.
func New(pruner Pruner, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		pruner: pruner,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.PruneSchedule != "" && cfg.LogRetention > 0 {
		if _, err := s.cron.AddFunc(cfg.PruneSchedule, s.PruneRequestLog); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PruneRequestLog removes request log rows past the retention window.
func (s *Scheduler) PruneRequestLog() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	removed, err := s.pruner.Prune(ctx, s.cfg.LogRetention)
	if err != nil {
		s.logger.Error("request log prune failed", zap.Error(err))
		return
	}
	s.logger.Info("request log pruned", zap.Int64("removed", removed))
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron scheduler stopped")
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
