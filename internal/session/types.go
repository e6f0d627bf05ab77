// Package session holds the per-tab authentication state (bearer token,
// email, role) and broadcasts changes to any number of subscribers.
package session

import (
	"strings"
	"time"
)

// Role is the account type returned by the login endpoint.
type Role string

const (
	RoleNone     Role = ""
	RoleClient   Role = "CLIENT"
	RoleProvider Role = "PROVIDER"
)

// ParseRole normalizes backend role strings ("provider", "ROLE_CLIENT").
func ParseRole(raw string) Role {
	r := strings.ToUpper(strings.TrimSpace(raw))
	r = strings.TrimPrefix(r, "ROLE_")
	switch Role(r) {
	case RoleClient:
		return RoleClient
	case RoleProvider:
		return RoleProvider
	default:
		return RoleNone
	}
}

// Profile is the non-secret part of a session.
type Profile struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Record is the persisted session shape.
type Record struct {
	Token string
	Email string
	Role  Role
}

// Event is broadcast after every Set or Clear. Subscribers should treat it
// as a signal to re-read the store.
type Event struct {
	SessionID string    `json:"sessionId"`
	LoggedIn  bool      `json:"loggedIn"`
	Profile   Profile   `json:"profile"`
	At        time.Time `json:"at"`
}
