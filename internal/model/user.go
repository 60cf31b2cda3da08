// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// Users sign up either with email + password or through GitHub OAuth, so
// both Email and GitHubID are optional individually. The store keeps each of
// them unique when present.
//
// PasswordHash carries the `json:"-"` tag so a User can be written straight
// to a response without leaking the bcrypt hash.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Avatar       string    `json:"avatar"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"` // 0 for password accounts
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
