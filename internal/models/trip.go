package models

import (
	"time"
)

// TripType represents the mode of transport being tracked
type TripType string

const (
	TripTypeBus   TripType = "bus"
	TripTypeTrain TripType = "train"
)

// TripStatus represents the lifecycle status of a trip
// Matches PostgreSQL ENUM: trip_status
type TripStatus string

const (
	TripStatusCreated              TripStatus = "created"               // Row inserted, nothing captured yet
	TripStatusAwaitingOrigin       TripStatus = "awaiting_origin"       // Bus: waiting for live location share
	TripStatusAwaitingDestination  TripStatus = "awaiting_destination"  // Bus: waiting for destination name
	TripStatusAwaitingConfirmation TripStatus = "awaiting_confirmation" // Train: ticket parsed, waiting for user confirm
	TripStatusAwaitingPhone        TripStatus = "awaiting_phone"        // Waiting for a callable phone number
	TripStatusActive               TripStatus = "active"                // Tracking in progress
	TripStatusAlerting             TripStatus = "alerting"              // Alert threshold crossed, call sequence running
	TripStatusCompleted            TripStatus = "completed"             // Rider confirmed awake
	TripStatusMissed               TripStatus = "missed"                // Call attempts exhausted without confirmation
	TripStatusCancelled            TripStatus = "cancelled"             // User cancelled
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusMissed || s == TripStatusCancelled
}

// Trip represents one tracked journey and its wake-up call state
type Trip struct {
	ID             string     `json:"id" db:"id"`
	UserTelegramID int64      `json:"user_telegram_id" db:"user_telegram_id"`
	Type           TripType   `json:"type" db:"type"`
	FromLocation   *string    `json:"from_location,omitempty" db:"from_location"`
	ToLocation     string     `json:"to_location" db:"to_location"`
	Status         TripStatus `json:"status" db:"status"`

	// Bus tracking
	CurrentLat     *float64 `json:"current_lat,omitempty" db:"current_lat"`
	CurrentLng     *float64 `json:"current_lng,omitempty" db:"current_lng"`
	DestinationLat *float64 `json:"destination_lat,omitempty" db:"destination_lat"`
	DestinationLng *float64 `json:"destination_lng,omitempty" db:"destination_lng"`

	// Train tracking
	PNR           *string    `json:"pnr,omitempty" db:"pnr"`
	TrainNumber   *string    `json:"train_number,omitempty" db:"train_number"`
	TrainName     *string    `json:"train_name,omitempty" db:"train_name"`
	DepartureTime *time.Time `json:"departure_time,omitempty" db:"departure_time"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty" db:"arrival_time"`

	// AlertTime is the one-shot alert marker. Once set it is never
	// cleared; its presence is the only thing preventing a second
	// wake-up call sequence for the same trip.
	AlertTime *time.Time `json:"alert_time,omitempty" db:"alert_time"`

	// Confirmed flips to true exactly once, when a call transcript (or
	// an explicit user action) shows the rider is awake.
	Confirmed bool `json:"confirmed" db:"confirmed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAlerted reports whether the alert marker has been set
func (t *Trip) HasAlerted() bool {
	return t.AlertTime != nil
}

// HasPosition reports whether the trip has both a current and a
// destination coordinate (required for bus proximity evaluation)
func (t *Trip) HasPosition() bool {
	return t.CurrentLat != nil && t.CurrentLng != nil &&
		t.DestinationLat != nil && t.DestinationLng != nil
}

// TripWithPhone is a trip joined with the owning user's contact details,
// as returned by the worker queries
type TripWithPhone struct {
	Trip
	Phone *string `json:"phone,omitempty" db:"phone"`
	Name  string  `json:"name" db:"name"`
}
