package database

import (
	"database/sql"
	"fmt"

	"github.com/wakemetravel/wakeme-backend/internal/models"
)

// UserRepository handles database operations for the users table
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates a user on first contact or refreshes name, username
// and last_active on every subsequent one
func (r *UserRepository) Upsert(telegramID int64, name string, username *string) error {
	query := `
		INSERT INTO users (telegram_id, name, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET name = $2, username = $3, last_active = NOW()
	`

	_, err := r.db.Exec(query, telegramID, name, username)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByTelegramID retrieves a user by Telegram ID
func (r *UserRepository) GetByTelegramID(telegramID int64) (*models.User, error) {
	query := `
		SELECT telegram_id, name, username, phone, language, created_at, last_active
		FROM users
		WHERE telegram_id = $1
	`

	var user models.User
	err := r.db.QueryRow(query, telegramID).Scan(
		&user.TelegramID, &user.Name, &user.Username, &user.Phone,
		&user.Language, &user.CreatedAt, &user.LastActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdatePhone stores the user's callable phone number
func (r *UserRepository) UpdatePhone(telegramID int64, phone string) error {
	query := `UPDATE users SET phone = $1, last_active = NOW() WHERE telegram_id = $2`

	result, err := r.db.Exec(query, phone, telegramID)
	if err != nil {
		return fmt.Errorf("failed to update phone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("user %d not found", telegramID)
	}

	return nil
}

// GetPhone retrieves the user's phone number, nil when not yet captured
func (r *UserRepository) GetPhone(telegramID int64) (*string, error) {
	query := `SELECT phone FROM users WHERE telegram_id = $1`

	var phone *string
	err := r.db.QueryRow(query, telegramID).Scan(&phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phone: %w", err)
	}

	return phone, nil
}
