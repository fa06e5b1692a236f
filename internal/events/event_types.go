package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventOTPResent         EventType = "otp_resent"
	EventAccountVerified   EventType = "account_verified"
)

// Event represents a lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OTPIssuedPayload carries a freshly issued verification challenge.
type OTPIssuedPayload struct {
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountVerifiedPayload payload.
type AccountVerifiedPayload struct {
	Email string `json:"email"`
}
