package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/database"
	"github.com/wakemetravel/wakeme-backend/internal/models"
	"github.com/wakemetravel/wakeme-backend/pkg/geo"
	"github.com/wakemetravel/wakeme-backend/pkg/rail"
	"github.com/wakemetravel/wakeme-backend/pkg/validator"
)

var (
	// ErrTripInProgress indicates the user already has a trip being tracked
	ErrTripInProgress = errors.New("a trip is already in progress, cancel it first")

	// ErrNoActiveTrip indicates there is no trip to act on
	ErrNoActiveTrip = errors.New("no active trip")

	// ErrWrongState indicates the trip is not in the right state for the action
	ErrWrongState = errors.New("trip is not in the right state for this action")

	// ErrTicketNotFound indicates the PNR could not be resolved
	ErrTicketNotFound = errors.New("could not find a ticket for that PNR")

	// ErrDestinationNotFound indicates the destination could not be geocoded
	ErrDestinationNotFound = errors.New("could not locate that destination")
)

// tripTransitions is the authoritative trip state machine. A transition
// absent from this table is invalid; cancel is additionally allowed
// from every non-terminal state.
var tripTransitions = map[models.TripStatus][]models.TripStatus{
	models.TripStatusCreated:              {models.TripStatusAwaitingOrigin, models.TripStatusAwaitingConfirmation},
	models.TripStatusAwaitingOrigin:       {models.TripStatusAwaitingDestination},
	models.TripStatusAwaitingDestination:  {models.TripStatusAwaitingPhone, models.TripStatusActive},
	models.TripStatusAwaitingConfirmation: {models.TripStatusAwaitingPhone, models.TripStatusActive},
	models.TripStatusAwaitingPhone:        {models.TripStatusActive},
	models.TripStatusActive:               {models.TripStatusAlerting, models.TripStatusCompleted},
	models.TripStatusAlerting:             {models.TripStatusCompleted, models.TripStatusMissed},
}

// CanTransition reports whether moving a trip from one status to
// another is allowed
func CanTransition(from, to models.TripStatus) bool {
	if to == models.TripStatusCancelled {
		return !from.IsTerminal()
	}
	// Explicit awake action may complete a trip from any non-terminal state
	if to == models.TripStatusCompleted && !from.IsTerminal() {
		return true
	}
	for _, allowed := range tripTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DestinationGeocoder resolves destination names to coordinates
type DestinationGeocoder interface {
	Geocode(address string) (*geo.Coordinate, error)
}

// TicketProvider resolves PNRs to parsed tickets
type TicketProvider interface {
	FetchPNR(pnr string) (*rail.TicketInfo, error)
}

// TripService owns the trip lifecycle: creation, origin/destination
// capture, phone capture, confirmation, cancel and the explicit awake
// short-circuit
type TripService struct {
	tripRepo *database.TripRepository
	userRepo *database.UserRepository
	geocoder DestinationGeocoder
	tickets  TicketProvider
	phones   *validator.PhoneValidator
	cfg      config.AlertConfig
	logger   *logrus.Logger
}

// NewTripService creates a new TripService
func NewTripService(
	tripRepo *database.TripRepository,
	userRepo *database.UserRepository,
	geocoder DestinationGeocoder,
	tickets TicketProvider,
	phones *validator.PhoneValidator,
	cfg config.AlertConfig,
	logger *logrus.Logger,
) *TripService {
	return &TripService{
		tripRepo: tripRepo,
		userRepo: userRepo,
		geocoder: geocoder,
		tickets:  tickets,
		phones:   phones,
		cfg:      cfg,
		logger:   logger,
	}
}

// StartBusTrip creates a bus trip for the user and waits for a live
// location share
func (s *TripService) StartBusTrip(telegramID int64, name string, username *string) (*models.Trip, error) {
	if err := s.userRepo.Upsert(telegramID, name, username); err != nil {
		return nil, err
	}

	existing, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTripInProgress
	}

	trip := &models.Trip{
		UserTelegramID: telegramID,
		Type:           models.TripTypeBus,
		ToLocation:     "pending",
		Status:         models.TripStatusAwaitingOrigin,
	}
	if err := s.tripRepo.Create(trip); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"user":    telegramID,
	}).Info("Bus trip created")

	return trip, nil
}

// CaptureBusLocation records a fresh position for the user's bus trip.
// The first share moves the trip from awaiting_origin to
// awaiting_destination; later shares just refresh the snapshot.
func (s *TripService) CaptureBusLocation(telegramID int64, lat, lng float64) (*models.Trip, error) {
	trip, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNoActiveTrip
	}
	if trip.Type != models.TripTypeBus {
		return nil, ErrWrongState
	}

	if err := s.tripRepo.UpdateBusLocation(trip.ID, lat, lng); err != nil {
		return nil, err
	}
	trip.CurrentLat = &lat
	trip.CurrentLng = &lng

	if trip.Status == models.TripStatusAwaitingOrigin {
		if err := s.transition(trip, models.TripStatusAwaitingDestination); err != nil {
			return nil, err
		}
	}

	return trip, nil
}

// SetBusDestination captures the destination name, geocodes it and
// advances the trip to awaiting_phone or straight to active when a
// phone is already on file
func (s *TripService) SetBusDestination(telegramID int64, destination string) (*models.Trip, error) {
	trip, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNoActiveTrip
	}
	if trip.Status != models.TripStatusAwaitingDestination {
		return nil, ErrWrongState
	}

	coord, err := s.geocoder.Geocode(destination)
	if err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}
	if coord == nil {
		return nil, ErrDestinationNotFound
	}

	next, err := s.statusAfterCapture(telegramID)
	if err != nil {
		return nil, err
	}

	if err := s.tripRepo.SetDestination(trip.ID, destination, &coord.Lat, &coord.Lng, next); err != nil {
		return nil, err
	}

	trip.ToLocation = destination
	trip.DestinationLat = &coord.Lat
	trip.DestinationLng = &coord.Lng
	trip.Status = next

	s.logger.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"destination": destination,
		"status":      next,
	}).Info("Bus destination captured")

	return trip, nil
}

// StartTrainTrip creates a train trip from a PNR lookup. The trip waits
// for the user to confirm the parsed ticket before tracking starts.
func (s *TripService) StartTrainTrip(telegramID int64, name string, username *string, pnr string) (*models.Trip, *rail.TicketInfo, error) {
	if err := s.userRepo.Upsert(telegramID, name, username); err != nil {
		return nil, nil, err
	}

	existing, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrTripInProgress
	}

	ticket, err := s.tickets.FetchPNR(pnr)
	if err != nil {
		return nil, nil, fmt.Errorf("PNR lookup failed: %w", err)
	}
	if ticket == nil {
		return nil, nil, ErrTicketNotFound
	}

	trip := &models.Trip{
		UserTelegramID: telegramID,
		Type:           models.TripTypeTrain,
		FromLocation:   &ticket.From,
		ToLocation:     ticket.To,
		Status:         models.TripStatusAwaitingConfirmation,
		PNR:            &ticket.PNR,
		TrainNumber:    &ticket.TrainNumber,
		TrainName:      &ticket.TrainName,
		DepartureTime:  &ticket.Departure,
		ArrivalTime:    &ticket.Arrival,
	}
	if err := s.tripRepo.Create(trip); err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"train":   ticket.TrainNumber,
		"pnr":     ticket.PNR,
	}).Info("Train trip created")

	return trip, ticket, nil
}

// ConfirmTrainTrip accepts the parsed ticket and advances the trip to
// awaiting_phone or active
func (s *TripService) ConfirmTrainTrip(telegramID int64) (*models.Trip, error) {
	trip, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNoActiveTrip
	}
	if trip.Status != models.TripStatusAwaitingConfirmation {
		return nil, ErrWrongState
	}

	next, err := s.statusAfterCapture(telegramID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(trip, next); err != nil {
		return nil, err
	}

	return trip, nil
}

// CapturePhone validates and stores the user's phone number and
// activates a trip that was only waiting for it
func (s *TripService) CapturePhone(telegramID int64, phone string) (*models.Trip, error) {
	sanitized, err := s.phones.Validate(phone)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdatePhone(telegramID, sanitized); err != nil {
		return nil, err
	}

	trip, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return nil, err
	}
	if trip != nil && trip.Status == models.TripStatusAwaitingPhone {
		if err := s.transition(trip, models.TripStatusActive); err != nil {
			return nil, err
		}
	}

	return trip, nil
}

// Cancel cancels the user's active trip. Cancelling when nothing is
// active (or the trip already finished) is a quiet no-op so duplicate
// or late cancel actions never error.
func (s *TripService) Cancel(telegramID int64) (bool, error) {
	trip, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return false, err
	}
	if trip == nil {
		return false, nil
	}

	cancelled, err := s.tripRepo.Cancel(trip.ID)
	if err != nil {
		return false, err
	}

	if cancelled {
		s.logger.WithField("trip_id", trip.ID).Info("Trip cancelled by user")
	}

	return cancelled, nil
}

// MarkAwake is the explicit "I'm awake" action. It short-circuits the
// call loop by completing the trip directly.
func (s *TripService) MarkAwake(telegramID int64) (bool, error) {
	trip, err := s.tripRepo.GetActiveTripByUser(telegramID)
	if err != nil {
		return false, err
	}
	if trip == nil {
		return false, nil
	}

	if err := s.tripRepo.MarkCompleted(trip.ID); err != nil {
		return false, err
	}

	s.logger.WithField("trip_id", trip.ID).Info("Trip completed by explicit awake action")

	return true, nil
}

// ActiveTrip returns the user's current trip, nil when there is none
func (s *TripService) ActiveTrip(telegramID int64) (*models.Trip, error) {
	return s.tripRepo.GetActiveTripByUser(telegramID)
}

// TrainAlertDue reports whether a train trip has reached its scheduled
// pre-arrival alert window
func (s *TripService) TrainAlertDue(trip *models.Trip, now time.Time) bool {
	if trip.ArrivalTime == nil {
		return false
	}
	return !now.Before(trip.ArrivalTime.Add(-s.cfg.TrainAlertOffset))
}

// statusAfterCapture decides whether a trip whose details are complete
// can activate immediately or must wait for a phone number
func (s *TripService) statusAfterCapture(telegramID int64) (models.TripStatus, error) {
	phone, err := s.userRepo.GetPhone(telegramID)
	if err != nil {
		return "", err
	}
	if phone != nil && *phone != "" {
		return models.TripStatusActive, nil
	}
	return models.TripStatusAwaitingPhone, nil
}

// transition applies a validated state change. Invalid transitions are
// absorbed as no-ops so duplicate or late events never crash a cycle.
func (s *TripService) transition(trip *models.Trip, to models.TripStatus) error {
	if !CanTransition(trip.Status, to) {
		s.logger.WithFields(logrus.Fields{
			"trip_id": trip.ID,
			"from":    trip.Status,
			"to":      to,
		}).Debug("Ignoring invalid trip transition")
		return nil
	}

	if err := s.tripRepo.UpdateStatus(trip.ID, to); err != nil {
		return err
	}
	trip.Status = to
	return nil
}
