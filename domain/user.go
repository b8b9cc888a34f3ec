package domain

import (
	"strings"
	"time"
)

// User represents a local user account. The record store owns the row; this
// core only references it. Email is the sole de-duplication key across the
// password flow and every federated provider.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Roles         []string  `json:"roles,omitempty"`
	Active        bool      `json:"active"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName composes a human readable name from the profile fields,
// falling back to the email local part when both names are empty.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// NewUser is the creation payload handed to the record store. The plaintext
// password is hashed by the store; this core never persists credentials.
type NewUser struct {
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	FirstName     string   `json:"first_name,omitempty"`
	LastName      string   `json:"last_name,omitempty"`
	Picture       string   `json:"picture,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	EmailVerified bool     `json:"email_verified"`
}

// UserInfo is the standard identity-claims projection of a stored user,
// returned by the "who am I" operation.
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	UpdatedAt     int64  `json:"updated_at"`
}
