// Package event carries domain events through an append-then-publish
// pipeline: every event is written to a durable log before asynchronous
// delivery to a publisher.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types emitted by the authentication flows.
const (
	TypeAccountLocked            = "AccountLocked"
	TypeAuthenticationFailed     = "AuthenticationFailed"
	TypeAuthenticationSucceeded  = "AuthenticationSucceeded"
	TypeMFAChallengeInitiated    = "MFAChallengeInitiated"
	TypeMFAVerificationSucceeded = "MFAVerificationSucceeded"
	TypeMFAVerificationFailed    = "MFAVerificationFailed"
	TypeSessionCreated           = "SessionCreated"
	TypeSessionInvalidated       = "SessionInvalidated"
	TypeDeviceRemembered         = "DeviceRemembered"
	TypeDeviceRevoked            = "DeviceRevoked"
	TypeUserLoggedIn             = "UserLoggedIn"
)

// Session invalidation reasons.
const (
	SessionReasonConcurrentLimit = "CONCURRENT_SESSION_LIMIT"
	SessionReasonLogout          = "LOGOUT"
	SessionReasonExpired         = "EXPIRED"
	SessionReasonSecurity        = "SECURITY"
)

const schemaVersion = 1

// Event is one immutable domain event. AggregateID is the user the event
// concerns.
type Event struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Version       int               `json:"version"`
	AggregateID   string            `json:"aggregateId"`
	CorrelationID string            `json:"correlationId"`
	OccurredAt    time.Time         `json:"occurredAt"`
	Payload       map[string]string `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and the current timestamp.
func New(eventType, aggregateID, correlationID string, payload map[string]string) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Version:       schemaVersion,
		AggregateID:   aggregateID,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}
