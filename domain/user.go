// Package domain contains core concepts of the translated chat system.
// This file defines the User entity referenced by conversations and messages.
// The user lifecycle (registration, credentials) lives outside the delivery core;
// only presence transitions mutate a User here.
package domain

import "time"

// Status is a user's connectivity state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
)

// DefaultLanguage is assumed whenever a user carries no preferred language.
const DefaultLanguage = "en"

type User struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email,omitempty"`
	PasswordHash      string    `json:"-"`
	PreferredLanguage string    `json:"preferredLanguage"`
	ProfilePicture    string    `json:"profilePicture,omitempty"`
	Status            Status    `json:"status"`
	LastSeen          time.Time `json:"lastSeen"`
	CreatedAt         time.Time `json:"createdAt"`
}

// TargetLanguage resolves the language messages addressed to this user
// must be translated into.
func (u User) TargetLanguage() string {
	if u.PreferredLanguage == "" {
		return DefaultLanguage
	}
	return u.PreferredLanguage
}
