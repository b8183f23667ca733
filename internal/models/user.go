package models

import "time"

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSettings holds per-user preferences, created alongside the user
type UserSettings struct {
	UserID               string    `json:"user_id"`
	Theme                string    `json:"theme"`
	Language             string    `json:"language"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings a new account starts with.
func DefaultSettings(userID string, now time.Time) *UserSettings {
	return &UserSettings{
		UserID:               userID,
		Theme:                "light",
		Language:             "en",
		NotificationsEnabled: true,
		UpdatedAt:            now,
	}
}
