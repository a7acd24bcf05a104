/**
 * @description
 * Cron scheduler setup for the recurring renewal scan.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron-driven renewal scan.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	logger   *slog.Logger
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(service *Service, logger *slog.Logger, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		service:  service,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the renewal scan job and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.processRenewals); err != nil {
		s.logger.Error("failed to schedule renewal scan job", "error", err)
	} else {
		s.logger.Info("scheduled renewal scan job", "schedule", s.schedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// processRenewals runs one scan pass; shared with the on-demand admin trigger
// through Service.RunScan.
func (s *Scheduler) processRenewals() {
	s.logger.Info("starting renewal scan job")
	ctx := context.Background()

	if err := s.service.RunScan(ctx); err != nil {
		s.logger.Error("renewal scan job failed", "error", err)
		return
	}

	s.logger.Info("renewal scan job finished")
}
