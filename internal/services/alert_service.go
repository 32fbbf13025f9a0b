package services

import (
	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/database"
)

// AlertService is the call-dispatch polling worker: each cycle it finds
// alerting trips whose wake-up sequence should start and hands them to
// the orchestrator. The suppression window keeps an in-flight sequence
// from being restarted.
type AlertService struct {
	tripRepo     *database.TripRepository
	orchestrator *CallOrchestratorService
	cfg          config.AlertConfig
	logger       *logrus.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(
	tripRepo *database.TripRepository,
	orchestrator *CallOrchestratorService,
	cfg config.AlertConfig,
	logger *logrus.Logger,
) *AlertService {
	return &AlertService{
		tripRepo:     tripRepo,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logger,
	}
}

// RunCycle runs one dispatch pass. Per-trip failures are logged and do
// not stop the rest of the batch.
func (s *AlertService) RunCycle() {
	trips, err := s.tripRepo.GetTripsDueForAlert(int(s.cfg.RecentCallWindow.Minutes()))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trips due for alert")
		return
	}

	if len(trips) == 0 {
		return
	}

	s.logger.WithField("count", len(trips)).Info("Starting wake-up call sequences")

	for i := range trips {
		trip := &trips[i]
		if err := s.orchestrator.StartSequence(trip); err != nil {
			s.logger.WithError(err).WithField("trip_id", trip.ID).Error("Failed to start call sequence")
		}
	}
}
