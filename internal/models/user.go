package models

import (
	"time"
)

// User represents a traveler reachable over Telegram and (once
// captured) by phone
type User struct {
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Name       string    `json:"name" db:"name"`
	Username   *string   `json:"username,omitempty" db:"username"`
	Phone      *string   `json:"phone,omitempty" db:"phone"`
	Language   *string   `json:"language,omitempty" db:"language"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastActive time.Time `json:"last_active" db:"last_active"`
}

// HasPhone reports whether a callable phone number is on file
func (u *User) HasPhone() bool {
	return u.Phone != nil && *u.Phone != ""
}
