// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"strings"
	"time"
)

// User represents a registered account in the identity provider.
//
// Accounts come from two places: email/password sign-up and Google OAuth.
// An OAuth-only account has an empty PasswordHash; a password account that
// later signs in with Google gets its GoogleID linked by email.
//
// WHY GoogleID *string?
// The column is UNIQUE, and SQL treats NULLs as distinct, so many password-only
// users can coexist without a Google id. An empty string would collide.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"` // always lower-cased
	PasswordHash string    `json:"-"         db:"password_hash"`
	FullName     string    `json:"fullName"  db:"full_name"`
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	GoogleID     *string   `json:"-"         db:"google_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName is the name shown in the UI and copied into a fresh profile:
// the account's full name, else the local part of its email.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}
