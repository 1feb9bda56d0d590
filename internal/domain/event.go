package domain

import "time"

const (
	EventUserRegistered    = "user.registered"
	EventUserEmailVerified = "user.email_verified"
	EventUserEmailChanged  = "user.email_changed"
	EventUserPhoneVerified = "user.phone_verified"
)

// Event is a user lifecycle fact published for downstream consumers.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}
