package models

import "time"

// User represents an authenticated user in the system.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	Password string `gorm:"size:255;not null" json:"-"` // bcrypt hash, never exposed in JSON
}
