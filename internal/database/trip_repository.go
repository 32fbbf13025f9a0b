package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/wakemetravel/wakeme-backend/internal/models"
)

// TripRepository handles database operations for the trips table
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, user_telegram_id, type, from_location, to_location, status,
	   current_lat, current_lng, destination_lat, destination_lng,
	   pnr, train_number, train_name, departure_time, arrival_time,
	   alert_time, confirmed, created_at, updated_at`

// Create inserts a new trip
func (r *TripRepository) Create(trip *models.Trip) error {
	query := `
		INSERT INTO trips (
			id, user_telegram_id, type, from_location, to_location, status,
			destination_lat, destination_lng,
			pnr, train_number, train_name, departure_time, arrival_time, alert_time
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		RETURNING created_at, updated_at
	`

	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		trip.ID, trip.UserTelegramID, trip.Type, trip.FromLocation, trip.ToLocation, trip.Status,
		trip.DestinationLat, trip.DestinationLng,
		trip.PNR, trip.TrainNumber, trip.TrainName, trip.DepartureTime, trip.ArrivalTime, trip.AlertTime,
	).Scan(&trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	return nil
}

// GetByID retrieves a trip by ID, nil when no such trip exists
func (r *TripRepository) GetByID(tripID string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := r.scanTrip(r.db.QueryRow(query, tripID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return trip, err
}

// GetActiveTripByUser retrieves the user's most recent non-terminal trip.
// Active-trip-per-user uniqueness is enforced by this "most recent
// non-terminal" query rather than a hard constraint.
func (r *TripRepository) GetActiveTripByUser(telegramID int64) (*models.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE user_telegram_id = $1
		  AND status NOT IN ('completed', 'missed', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1
	`

	trip, err := r.scanTrip(r.db.QueryRow(query, telegramID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return trip, err
}

// UpdateStatus sets the trip status
func (r *TripRepository) UpdateStatus(tripID string, status models.TripStatus) error {
	query := `UPDATE trips SET status = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Exec(query, tripID, status)
	if err != nil {
		return fmt.Errorf("failed to update trip status: %w", err)
	}
	return nil
}

// UpdateBusLocation records a fresh position snapshot for a bus trip
func (r *TripRepository) UpdateBusLocation(tripID string, lat, lng float64) error {
	query := `
		UPDATE trips
		SET current_lat = $2, current_lng = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Exec(query, tripID, lat, lng)
	if err != nil {
		return fmt.Errorf("failed to update bus location: %w", err)
	}
	return nil
}

// SetDestination records the destination name and (optionally) its
// geocoded coordinate
func (r *TripRepository) SetDestination(tripID string, destination string, lat, lng *float64, status models.TripStatus) error {
	query := `
		UPDATE trips
		SET to_location = $2, destination_lat = $3, destination_lng = $4,
			status = $5, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Exec(query, tripID, destination, lat, lng, status)
	if err != nil {
		return fmt.Errorf("failed to set destination: %w", err)
	}
	return nil
}

// TrySetAlertMarker atomically sets the one-shot alert marker and moves
// the trip to alerting. Returns false if the marker was already set (or
// the trip is no longer active), so overlapping poll cycles can never
// double-trigger the call sequence.
func (r *TripRepository) TrySetAlertMarker(tripID string) (bool, error) {
	query := `
		UPDATE trips
		SET alert_time = NOW(), status = 'alerting', updated_at = NOW()
		WHERE id = $1 AND alert_time IS NULL AND status = 'active'
	`

	result, err := r.db.Exec(query, tripID)
	if err != nil {
		return false, fmt.Errorf("failed to set alert marker: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// MarkCompleted finalizes a trip after the rider confirmed they are
// awake. A no-op if the trip is already terminal.
func (r *TripRepository) MarkCompleted(tripID string) error {
	query := `
		UPDATE trips
		SET status = 'completed', confirmed = TRUE, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'missed', 'cancelled')
	`

	_, err := r.db.Exec(query, tripID)
	if err != nil {
		return fmt.Errorf("failed to mark trip completed: %w", err)
	}
	return nil
}

// MarkMissed finalizes a trip whose call attempts were exhausted
// without confirmation. A no-op if the trip is already terminal.
func (r *TripRepository) MarkMissed(tripID string) error {
	query := `
		UPDATE trips
		SET status = 'missed', updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'missed', 'cancelled')
	`

	_, err := r.db.Exec(query, tripID)
	if err != nil {
		return fmt.Errorf("failed to mark trip missed: %w", err)
	}
	return nil
}

// Cancel cancels a trip unless it has already reached a terminal state.
// Returns whether a row was actually cancelled.
func (r *TripRepository) Cancel(tripID string) (bool, error) {
	query := `
		UPDATE trips
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'missed', 'cancelled')
	`

	result, err := r.db.Exec(query, tripID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel trip: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// GetActiveBusTrips retrieves active bus trips with both coordinates
// present, joined with the owner's contact details, for the tracking
// worker
func (r *TripRepository) GetActiveBusTrips() ([]models.TripWithPhone, error) {
	query := `
		SELECT ` + prefixedTripColumns + `, u.phone, u.name
		FROM trips t
		JOIN users u ON t.user_telegram_id = u.telegram_id
		WHERE t.type = 'bus'
		  AND t.status = 'active'
		  AND t.current_lat IS NOT NULL
		  AND t.destination_lat IS NOT NULL
		ORDER BY t.created_at ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active bus trips: %w", err)
	}
	defer rows.Close()

	return r.scanTripsWithPhone(rows)
}

// GetActiveTrainTrips retrieves active train trips with enough schedule
// data to be tracked, joined with the owner's contact details
func (r *TripRepository) GetActiveTrainTrips() ([]models.TripWithPhone, error) {
	query := `
		SELECT ` + prefixedTripColumns + `, u.phone, u.name
		FROM trips t
		JOIN users u ON t.user_telegram_id = u.telegram_id
		WHERE t.type = 'train'
		  AND t.status = 'active'
		  AND t.train_number IS NOT NULL
		  AND t.departure_time IS NOT NULL
		ORDER BY t.departure_time ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active train trips: %w", err)
	}
	defer rows.Close()

	return r.scanTripsWithPhone(rows)
}

// GetTripsDueForAlert retrieves alerting trips whose call sequence
// should start: marker due, rider not yet confirmed, phone on file, and
// no call placed within the suppression window.
func (r *TripRepository) GetTripsDueForAlert(suppressionMinutes int) ([]models.TripWithPhone, error) {
	query := `
		SELECT ` + prefixedTripColumns + `, u.phone, u.name
		FROM trips t
		JOIN users u ON t.user_telegram_id = u.telegram_id
		WHERE t.status = 'alerting'
		  AND t.confirmed = FALSE
		  AND t.alert_time <= NOW() + INTERVAL '1 minute'
		  AND u.phone IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM call_logs
			WHERE call_logs.trip_id = t.id
			  AND call_logs.created_at > NOW() - make_interval(mins => $1)
		  )
		ORDER BY t.alert_time ASC
	`

	rows, err := r.db.Query(query, suppressionMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips due for alert: %w", err)
	}
	defer rows.Close()

	return r.scanTripsWithPhone(rows)
}

// GetWithPhone retrieves a single trip joined with the owner's phone,
// used by the call retry path so each retry sees current state
func (r *TripRepository) GetWithPhone(tripID string) (*models.TripWithPhone, error) {
	query := `
		SELECT ` + prefixedTripColumns + `, u.phone, u.name
		FROM trips t
		JOIN users u ON t.user_telegram_id = u.telegram_id
		WHERE t.id = $1
	`

	row := r.db.QueryRow(query, tripID)

	var trip models.TripWithPhone
	err := row.Scan(
		&trip.ID, &trip.UserTelegramID, &trip.Type, &trip.FromLocation, &trip.ToLocation, &trip.Status,
		&trip.CurrentLat, &trip.CurrentLng, &trip.DestinationLat, &trip.DestinationLng,
		&trip.PNR, &trip.TrainNumber, &trip.TrainName, &trip.DepartureTime, &trip.ArrivalTime,
		&trip.AlertTime, &trip.Confirmed, &trip.CreatedAt, &trip.UpdatedAt,
		&trip.Phone, &trip.Name,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip with phone: %w", err)
	}

	return &trip, nil
}

const prefixedTripColumns = `t.id, t.user_telegram_id, t.type, t.from_location, t.to_location, t.status,
		   t.current_lat, t.current_lng, t.destination_lat, t.destination_lng,
		   t.pnr, t.train_number, t.train_name, t.departure_time, t.arrival_time,
		   t.alert_time, t.confirmed, t.created_at, t.updated_at`

// scanTrip scans a single trip row
func (r *TripRepository) scanTrip(row *sql.Row) (*models.Trip, error) {
	var trip models.Trip
	err := row.Scan(
		&trip.ID, &trip.UserTelegramID, &trip.Type, &trip.FromLocation, &trip.ToLocation, &trip.Status,
		&trip.CurrentLat, &trip.CurrentLng, &trip.DestinationLat, &trip.DestinationLng,
		&trip.PNR, &trip.TrainNumber, &trip.TrainName, &trip.DepartureTime, &trip.ArrivalTime,
		&trip.AlertTime, &trip.Confirmed, &trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// scanTripsWithPhone scans joined trip+user rows
func (r *TripRepository) scanTripsWithPhone(rows *sql.Rows) ([]models.TripWithPhone, error) {
	trips := []models.TripWithPhone{}
	for rows.Next() {
		var trip models.TripWithPhone
		err := rows.Scan(
			&trip.ID, &trip.UserTelegramID, &trip.Type, &trip.FromLocation, &trip.ToLocation, &trip.Status,
			&trip.CurrentLat, &trip.CurrentLng, &trip.DestinationLat, &trip.DestinationLng,
			&trip.PNR, &trip.TrainNumber, &trip.TrainName, &trip.DepartureTime, &trip.ArrivalTime,
			&trip.AlertTime, &trip.Confirmed, &trip.CreatedAt, &trip.UpdatedAt,
			&trip.Phone, &trip.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip row: %w", err)
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}
