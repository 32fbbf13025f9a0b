package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/wakemetravel/wakeme-backend/internal/models"
)

// CallLogRepository handles database operations for the call_logs table
type CallLogRepository struct {
	db DB
}

// NewCallLogRepository creates a new CallLogRepository
func NewCallLogRepository(db DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Create inserts a call log row. Written before the vendor request goes
// out, so the attempt is never lost if placement fails mid-flight.
func (r *CallLogRepository) Create(log *models.CallLog) error {
	query := `
		INSERT INTO call_logs (id, trip_id, call_id, attempt_number, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Status == "" {
		log.Status = models.CallStatusInitiated
	}

	err := r.db.QueryRow(
		query,
		log.ID, log.TripID, log.CallID, log.AttemptNumber, log.Status,
	).Scan(&log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create call log: %w", err)
	}

	return nil
}

// SetVendorCall records the vendor-assigned call ID once the vendor
// accepted the call
func (r *CallLogRepository) SetVendorCall(logID, callID string) error {
	query := `UPDATE call_logs SET call_id = $2, status = 'queued' WHERE id = $1`

	_, err := r.db.Exec(query, logID, callID)
	if err != nil {
		return fmt.Errorf("failed to set vendor call id: %w", err)
	}
	return nil
}

// MarkFailed marks a placement that the vendor never accepted. Failed
// rows do not count toward the attempt budget.
func (r *CallLogRepository) MarkFailed(logID string) error {
	query := `UPDATE call_logs SET status = 'failed' WHERE id = $1`

	_, err := r.db.Exec(query, logID)
	if err != nil {
		return fmt.Errorf("failed to mark call log failed: %w", err)
	}
	return nil
}

// UpdateResult records the outcome of a finished call, keyed by the
// vendor call ID carried on the webhook
func (r *CallLogRepository) UpdateResult(callID string, status models.CallStatus, transcript string, duration int) error {
	query := `
		UPDATE call_logs
		SET status = $2, transcript = $3, duration = $4
		WHERE call_id = $1
	`

	_, err := r.db.Exec(query, callID, status, transcript, duration)
	if err != nil {
		return fmt.Errorf("failed to update call result: %w", err)
	}
	return nil
}

// GetByCallID retrieves a call log by the vendor call ID
func (r *CallLogRepository) GetByCallID(callID string) (*models.CallLog, error) {
	query := `
		SELECT id, trip_id, call_id, attempt_number, status, transcript, duration, created_at
		FROM call_logs
		WHERE call_id = $1
	`

	var log models.CallLog
	err := r.db.QueryRow(query, callID).Scan(
		&log.ID, &log.TripID, &log.CallID, &log.AttemptNumber,
		&log.Status, &log.Transcript, &log.Duration, &log.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call log: %w", err)
	}

	return &log, nil
}

// CountAttempts counts the call attempts that actually reached the
// vendor for a trip. Rejected placements are excluded so they never
// consume an attempt slot.
func (r *CallLogRepository) CountAttempts(tripID string) (int, error) {
	query := `SELECT COUNT(*) FROM call_logs WHERE trip_id = $1 AND status != 'failed'`

	var count int
	err := r.db.QueryRow(query, tripID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count call attempts: %w", err)
	}

	return count, nil
}
