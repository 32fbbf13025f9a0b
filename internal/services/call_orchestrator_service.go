package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/database"
	"github.com/wakemetravel/wakeme-backend/internal/models"
	"github.com/wakemetravel/wakeme-backend/pkg/voice"
)

// confirmationLexicon is the fixed phrase set a transcript is matched
// against to decide the rider is awake. Matching is deliberately a
// conservative case-insensitive substring check.
var confirmationLexicon = []string{
	"i'm awake",
	"i am awake",
	"yes i'm up",
	"i'm up",
	"okay i'm ready",
	"ready",
	"awake",
	"yes",
}

// IsConfirmedAwake classifies a call transcript. An empty or missing
// transcript is never a confirmation.
func IsConfirmedAwake(transcript string) bool {
	if transcript == "" {
		return false
	}

	lower := strings.ToLower(transcript)
	for _, phrase := range confirmationLexicon {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// VoiceGateway places wake-up calls
type VoiceGateway interface {
	PlaceCall(req voice.CallRequest) (string, error)
}

// Notifier delivers best-effort user-facing messages
type Notifier interface {
	Notify(chatID int64, text string) error
}

// CallResult is the normalized outcome of one call, produced at the
// webhook boundary from whatever shape the vendor delivered
type CallResult struct {
	CallID          string
	Status          string
	Transcript      string
	DurationSeconds int
	TripID          string
	Attempt         int
	UserTelegramID  int64
}

// CallOrchestratorService owns the wake-up call retry loop. It places
// calls with escalating urgency and classifies each result: the trip is
// finalized on confirmation, retried after a delay otherwise, and marked
// missed once the attempt budget runs out.
type CallOrchestratorService struct {
	tripRepo *database.TripRepository
	callRepo *database.CallLogRepository
	gateway  VoiceGateway
	notifier Notifier
	cfg      config.AlertConfig
	logger   *logrus.Logger

	mu      sync.Mutex
	stopped bool
	timers  map[*time.Timer]struct{}
}

// NewCallOrchestratorService creates a new CallOrchestratorService
func NewCallOrchestratorService(
	tripRepo *database.TripRepository,
	callRepo *database.CallLogRepository,
	gateway VoiceGateway,
	notifier Notifier,
	cfg config.AlertConfig,
	logger *logrus.Logger,
) *CallOrchestratorService {
	return &CallOrchestratorService{
		tripRepo: tripRepo,
		callRepo: callRepo,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		timers:   map[*time.Timer]struct{}{},
	}
}

// Stop cancels all pending retry timers
func (s *CallOrchestratorService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = map[*time.Timer]struct{}{}
}

// StartSequence begins the wake-up call sequence for a trip whose alert
// marker has fired. The attempt number continues from any calls that
// already reached the vendor.
func (s *CallOrchestratorService) StartSequence(trip *models.TripWithPhone) error {
	placed, err := s.callRepo.CountAttempts(trip.ID)
	if err != nil {
		return err
	}

	attempt := placed + 1
	if attempt > s.cfg.MaxCallAttempts {
		// Budget spent but the trip is still alerting, meaning the final
		// webhook never arrived. Close it out as missed so the alert
		// sweep stops picking it up.
		s.logger.WithField("trip_id", trip.ID).Warn("Call sequence already exhausted, marking trip missed")
		if err := s.tripRepo.MarkMissed(trip.ID); err != nil {
			return err
		}
		s.notify(trip.UserTelegramID, fmt.Sprintf(
			"🚨 We called %d times but couldn't confirm you're awake!\nYou are very close to %s! Please check where you are RIGHT NOW!",
			s.cfg.MaxCallAttempts, trip.ToLocation))
		return nil
	}

	return s.placeAttempt(trip, attempt)
}

// HandleCallResult advances the loop with a normalized call outcome.
// Duplicate results for a finalized trip are absorbed without side
// effects.
func (s *CallOrchestratorService) HandleCallResult(result CallResult) error {
	log := s.logger.WithFields(logrus.Fields{
		"call_id": result.CallID,
		"trip_id": result.TripID,
		"attempt": result.Attempt,
		"status":  result.Status,
	})

	if result.CallID != "" {
		if err := s.callRepo.UpdateResult(result.CallID, models.CallStatusEnded, result.Transcript, result.DurationSeconds); err != nil {
			log.WithError(err).Error("Failed to record call result")
		}
	}

	trip, err := s.tripRepo.GetByID(result.TripID)
	if err != nil {
		return fmt.Errorf("failed to load trip for call result: %w", err)
	}
	if trip == nil {
		log.Warn("Call result for unknown trip, ignoring")
		return nil
	}

	// Idempotency: once confirmed or terminal, late results change nothing
	if trip.Confirmed || trip.Status.IsTerminal() {
		log.Debug("Call result for finalized trip, ignoring")
		return nil
	}

	if IsConfirmedAwake(result.Transcript) {
		if err := s.tripRepo.MarkCompleted(trip.ID); err != nil {
			return err
		}
		log.Info("Rider confirmed awake, trip completed")
		s.notify(trip.UserTelegramID, "✅ Great! You're awake!\nHave a safe journey! 🎉")
		return nil
	}

	if result.Attempt < 1 {
		// Malformed vendor metadata: recover the attempt number from
		// the call log instead of trusting a zero
		placed, err := s.callRepo.CountAttempts(trip.ID)
		if err != nil {
			return err
		}
		if placed < 1 {
			placed = 1
		}
		result.Attempt = placed
		log = log.WithField("attempt", result.Attempt)
	}

	if result.Attempt >= s.cfg.MaxCallAttempts {
		if err := s.tripRepo.MarkMissed(trip.ID); err != nil {
			return err
		}
		log.Warn("Call attempts exhausted without confirmation")
		s.notify(trip.UserTelegramID, fmt.Sprintf(
			"🚨 We called %d times but couldn't confirm you're awake!\nYou are very close to %s! Please check where you are RIGHT NOW!",
			s.cfg.MaxCallAttempts, trip.ToLocation))
		return nil
	}

	retryMinutes := int(s.cfg.CallRetryDelay.Minutes())
	s.notify(trip.UserTelegramID, fmt.Sprintf(
		"😴 Couldn't confirm you're awake.\n📞 Calling again in %d minutes (attempt %d of %d)...",
		retryMinutes, result.Attempt+1, s.cfg.MaxCallAttempts))
	s.scheduleRetry(trip.ID, result.Attempt+1)

	return nil
}

// placeAttempt records the attempt and then asks the vendor to dial.
// The call log row is written first so a placement crash never loses an
// attempt; a vendor rejection marks the row failed and does not consume
// an attempt slot.
func (s *CallOrchestratorService) placeAttempt(trip *models.TripWithPhone, attempt int) error {
	if trip.Phone == nil || *trip.Phone == "" {
		return fmt.Errorf("trip %s has no phone on file", trip.ID)
	}

	callLog := &models.CallLog{
		TripID:        trip.ID,
		AttemptNumber: attempt,
	}
	if err := s.callRepo.Create(callLog); err != nil {
		return err
	}

	callID, err := s.gateway.PlaceCall(voice.CallRequest{
		Phone:          *trip.Phone,
		Destination:    trip.ToLocation,
		Mode:           string(trip.Type),
		TripID:         trip.ID,
		UserTelegramID: trip.UserTelegramID,
		Attempt:        attempt,
		MaxAttempts:    s.cfg.MaxCallAttempts,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"trip_id": trip.ID,
			"attempt": attempt,
		}).Error("Call placement failed, scheduling retry")

		if markErr := s.callRepo.MarkFailed(callLog.ID); markErr != nil {
			s.logger.WithError(markErr).Error("Failed to mark call log failed")
		}

		// Same scheduling rule as a not-confirmed result, but the slot
		// is not consumed: the retry reuses this attempt number.
		s.scheduleRetry(trip.ID, attempt)
		return nil
	}

	if err := s.callRepo.SetVendorCall(callLog.ID, callID); err != nil {
		s.logger.WithError(err).Error("Failed to record vendor call id")
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"call_id": callID,
		"attempt": attempt,
	}).Info("Wake-up call placed")

	if attempt == 1 {
		s.notify(trip.UserTelegramID, "📞 Calling you now to wake you up!")
	}

	return nil
}

// scheduleRetry arms a delayed retry. The retry re-reads the trip when
// it fires, so a cancel (or confirmation) landing inside the delay
// window suppresses the next call.
func (s *CallOrchestratorService) scheduleRetry(tripID string, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.CallRetryDelay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		s.retry(tripID, attempt)
	})
	s.timers[timer] = struct{}{}
}

// retry places the next attempt if, and only if, the trip is still in
// the alerting state
func (s *CallOrchestratorService) retry(tripID string, attempt int) {
	trip, err := s.tripRepo.GetWithPhone(tripID)
	if err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Error("Failed to load trip for call retry")
		return
	}
	if trip == nil {
		return
	}

	if trip.Status != models.TripStatusAlerting || trip.Confirmed {
		s.logger.WithFields(logrus.Fields{
			"trip_id": tripID,
			"status":  trip.Status,
		}).Info("Skipping call retry, trip no longer alerting")
		return
	}

	if err := s.placeAttempt(trip, attempt); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Error("Call retry failed")
	}
}

// notify delivers a best-effort message; failures are logged, never propagated
func (s *CallOrchestratorService) notify(chatID int64, text string) {
	if err := s.notifier.Notify(chatID, text); err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Warn("Notification failed")
	}
}
