package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/openforum/forum/schema"
)

// User is a row of the identity store. Its table name is configurable, so
// callers always address it through the configured identity table.
// Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the username bounds.
func (u *User) Validate() error {
	name := strings.TrimSpace(u.Username)
	if name == "" {
		return invalid("username", "cannot be empty")
	}
	if n := utf8.RuneCountInString(name); n > schema.UsernameMaxLength {
		return invalid("username", "must be at most %d characters, got %d", schema.UsernameMaxLength, n)
	}
	if u.PasswordHash == "" {
		return invalid("password", "is required")
	}
	return nil
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return u.Validate()
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now().UTC()
	return nil
}
