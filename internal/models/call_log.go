package models

import (
	"time"
)

// CallStatus represents the lifecycle status of one wake-up call attempt
// Matches PostgreSQL ENUM: call_status
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated" // Row written, vendor not yet confirmed
	CallStatusQueued    CallStatus = "queued"    // Vendor accepted the call
	CallStatusEnded     CallStatus = "ended"     // Call finished, result recorded
	CallStatusFailed    CallStatus = "failed"    // Vendor rejected the call; does not consume an attempt
)

// CallLog represents one placed (or attempted) wake-up call.
// The row is written before the vendor request is sent, so a crash
// mid-placement never loses track of an attempt.
type CallLog struct {
	ID            string     `json:"id" db:"id"`
	TripID        string     `json:"trip_id" db:"trip_id"`
	CallID        *string    `json:"call_id,omitempty" db:"call_id"` // Vendor-assigned, set once the call is accepted
	AttemptNumber int        `json:"attempt_number" db:"attempt_number"`
	Status        CallStatus `json:"status" db:"status"`
	Transcript    *string    `json:"transcript,omitempty" db:"transcript"`
	Duration      *int       `json:"duration,omitempty" db:"duration"` // Seconds
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
