package domain

import "time"

// AuthEventType names a user lifecycle transition published to downstream
// consumers.
type AuthEventType string

const (
	EventUserRegistered        AuthEventType = "user.registered"
	EventUserLoggedIn          AuthEventType = "user.logged_in"
	EventUserLoggedOut         AuthEventType = "user.logged_out"
	EventTokenRefreshed        AuthEventType = "token.refreshed"
	EventPasswordResetRequest  AuthEventType = "password.reset_requested"
	EventPasswordResetComplete AuthEventType = "password.reset_completed"
	EventProfileUpdated        AuthEventType = "profile.updated"
)

// AuthEvent is an audit record of a lifecycle transition. It never carries
// passwords or tokens.
type AuthEvent struct {
	Type       AuthEventType `json:"type"`
	UserID     string        `json:"user_id"`
	Email      string        `json:"email,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
