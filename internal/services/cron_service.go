package services

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/config"
)

// CronService drives the polling workers on independent cadences:
// position/schedule tracking on one interval, call dispatch on another.
type CronService struct {
	cron     *cron.Cron
	tracking *TrackingService
	alerts   *AlertService
	cfg      config.AlertConfig
	logger   *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(
	tracking *TrackingService,
	alerts *AlertService,
	cfg config.AlertConfig,
	logger *logrus.Logger,
) *CronService {
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		tracking: tracking,
		alerts:   alerts,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start schedules the workers and runs each once immediately so a
// restart never waits a full interval before catching up
func (s *CronService) Start() error {
	s.logger.Info("Starting worker scheduler")

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.TrackingInterval), s.tracking.RunCycle); err != nil {
		return fmt.Errorf("failed to schedule tracking worker: %w", err)
	}
	s.logger.Infof("Scheduled: trip tracking (every %s)", s.cfg.TrackingInterval)

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.AlertInterval), s.alerts.RunCycle); err != nil {
		return fmt.Errorf("failed to schedule alert worker: %w", err)
	}
	s.logger.Infof("Scheduled: alert dispatch (every %s)", s.cfg.AlertInterval)

	go s.tracking.RunCycle()
	go s.alerts.RunCycle()

	s.cron.Start()
	s.logger.Info("Worker scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running cycles to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping worker scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Worker scheduler stopped")
}
