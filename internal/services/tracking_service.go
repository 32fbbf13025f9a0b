package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/database"
	"github.com/wakemetravel/wakeme-backend/internal/models"
	"github.com/wakemetravel/wakeme-backend/pkg/rail"
)

// TrainProgressProvider supplies live train progress toward a destination
type TrainProgressProvider interface {
	LiveStatus(trainNumber, date, destinationStation string) (*rail.Progress, error)
}

// TrackingService is the position/schedule polling worker. Each cycle
// it evaluates every active trip, sends zone notifications, and sets
// the one-shot alert marker when a trip crosses its threshold. One
// trip's failure never aborts the cycle for the others.
type TrackingService struct {
	tripRepo  *database.TripRepository
	proximity *ProximityService
	trains    TrainProgressProvider
	notifier  Notifier
	cfg       config.AlertConfig
	logger    *logrus.Logger
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(
	tripRepo *database.TripRepository,
	proximity *ProximityService,
	trains TrainProgressProvider,
	notifier Notifier,
	cfg config.AlertConfig,
	logger *logrus.Logger,
) *TrackingService {
	return &TrackingService{
		tripRepo:  tripRepo,
		proximity: proximity,
		trains:    trains,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunCycle runs one full tracking pass over bus and train trips
func (s *TrackingService) RunCycle() {
	s.trackBusTrips()
	s.trackTrainTrips()
}

func (s *TrackingService) trackBusTrips() {
	trips, err := s.tripRepo.GetActiveBusTrips()
	if err != nil {
		s.logger.WithError(err).Error("Failed to load active bus trips")
		return
	}

	for i := range trips {
		trip := &trips[i]
		if err := s.trackBusTrip(trip); err != nil {
			s.logger.WithError(err).WithField("trip_id", trip.ID).Error("Bus tracking failed for trip")
		}
	}
}

func (s *TrackingService) trackBusTrip(trip *models.TripWithPhone) error {
	eval := s.proximity.EvaluateBus(&trip.Trip)

	log := s.logger.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"zone":        eval.Zone,
		"distance_km": eval.DistanceKm,
	})

	if eval.Zone == ZoneUnknown {
		log.Debug("Skipping trip without position data")
		return nil
	}

	if trip.HasAlerted() {
		log.Debug("Alert already triggered")
		return nil
	}

	switch {
	case eval.ShouldAlert:
		return s.triggerAlert(trip, fmt.Sprintf(
			"🚨 APPROACHING DESTINATION!\n📍 %.1f km to %s\n📞 You'll receive a wake-up call shortly...",
			eval.DistanceKm, trip.ToLocation))
	case eval.Zone == ZoneWarn:
		log.Info("Trip in warning zone")
		s.notify(trip.UserTelegramID, fmt.Sprintf(
			"⚠️ Getting close!\n📍 %.1f km to %s\n⏰ ~%d mins remaining",
			eval.DistanceKm, trip.ToLocation, eval.ETAMinutes))
	case eval.Zone == ZoneInfo:
		log.Info("Trip in info zone")
		s.notify(trip.UserTelegramID, fmt.Sprintf(
			"ℹ️ Approaching destination\n📍 %.1f km to %s",
			eval.DistanceKm, trip.ToLocation))
	default:
		log.Debug("Still traveling")
	}

	return nil
}

func (s *TrackingService) trackTrainTrips() {
	trips, err := s.tripRepo.GetActiveTrainTrips()
	if err != nil {
		s.logger.WithError(err).Error("Failed to load active train trips")
		return
	}

	for i := range trips {
		trip := &trips[i]
		if err := s.trackTrainTrip(trip); err != nil {
			s.logger.WithError(err).WithField("trip_id", trip.ID).Error("Train tracking failed for trip")
		}
	}
}

func (s *TrackingService) trackTrainTrip(trip *models.TripWithPhone) error {
	if trip.HasAlerted() {
		return nil
	}

	now := time.Now()

	// Schedule fallback: even without live data, alert once the
	// pre-arrival window opens
	scheduleDue := trip.ArrivalTime != nil && !now.Before(trip.ArrivalTime.Add(-s.cfg.TrainAlertOffset))

	var progress *rail.Progress
	if trip.TrainNumber != nil && trip.DepartureTime != nil && !now.Before(*trip.DepartureTime) {
		var err error
		progress, err = s.trains.LiveStatus(*trip.TrainNumber, rail.FormatDate(*trip.DepartureTime), trip.ToLocation)
		if err != nil {
			// Transient provider error: fall through to the schedule
			// fallback, retry live data next cycle
			s.logger.WithError(err).WithField("trip_id", trip.ID).Warn("Live train status unavailable")
		}
	}

	eval := s.proximity.EvaluateTrain(progress, trip.HasAlerted())

	if eval.ShouldAlert {
		message := fmt.Sprintf(
			"🚨 ALMOST THERE!\n🚉 %d station(s) and %.0f km to %s\n📞 You'll receive a wake-up call shortly...",
			eval.StationsRemaining, eval.DistanceKm, trip.ToLocation)
		if eval.DelayMinutes > 0 {
			message += fmt.Sprintf("\n⏰ Running %d min late", eval.DelayMinutes)
		}
		return s.triggerAlert(trip, message)
	}

	if scheduleDue {
		return s.triggerAlert(trip, fmt.Sprintf(
			"🚨 ALMOST THERE!\n🚆 Scheduled to arrive at %s soon\n📞 You'll receive a wake-up call shortly...",
			trip.ToLocation))
	}

	if eval.Zone != ZoneUnknown {
		s.logger.WithFields(logrus.Fields{
			"trip_id":            trip.ID,
			"stations_remaining": eval.StationsRemaining,
			"distance_km":        eval.DistanceKm,
		}).Debug("Train still en route")
	}

	return nil
}

// triggerAlert sets the one-shot alert marker and notifies the rider.
// The conditional update makes this safe against overlapping cycles:
// only the cycle that wins the marker sends the notification.
func (s *TrackingService) triggerAlert(trip *models.TripWithPhone, message string) error {
	marked, err := s.tripRepo.TrySetAlertMarker(trip.ID)
	if err != nil {
		return err
	}
	if !marked {
		s.logger.WithField("trip_id", trip.ID).Debug("Alert marker already set by another cycle")
		return nil
	}

	s.logger.WithField("trip_id", trip.ID).Info("Alert threshold crossed, wake-up sequence armed")
	s.notify(trip.UserTelegramID, message)

	return nil
}

func (s *TrackingService) notify(chatID int64, text string) {
	if err := s.notifier.Notify(chatID, text); err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Warn("Notification failed")
	}
}
