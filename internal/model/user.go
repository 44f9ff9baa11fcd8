// Package model defines the data structures used throughout the application.
package model

import "time"

// UserStatus is either active or blocked. Blocked users keep their data
// but can no longer authenticate.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// User represents a registered account.
//
// Accounts are created either by email/password registration or by the
// first GitHub sign-in (matched by email). PasswordHash is empty for
// GitHub-only accounts and is never serialised.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	GitHubID     *int64     `json:"githubId,omitempty"`
	IsAdmin      bool       `json:"isAdmin"`
	Status       UserStatus `json:"status"`
	Theme        string     `json:"theme"`
	Language     string     `json:"language"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Actor is the authenticated identity attached to a request. It is the
// only view of a user that the access policy looks at.
type Actor struct {
	ID      string
	Email   string
	IsAdmin bool
}

// Actor returns the request identity for this user.
func (u *User) Actor() *Actor {
	return &Actor{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}
}
