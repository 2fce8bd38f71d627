package domain

import "time"

// EventType names an authentication lifecycle event.
type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventSessionRotated EventType = "session.rotated"
	EventSessionDenied  EventType = "session.denied"
	EventSessionRevoked EventType = "session.revoked"
	EventSignedOut      EventType = "session.signed_out"
	EventLoginFailed    EventType = "login.failed"
	EventCodeSent       EventType = "login.code_sent"
)

// AuthEvent is a single authentication event. The JSON form is what goes to Kafka
// and, through the worker, to Loki.
type AuthEvent struct {
	Type      EventType `json:"eventType"`
	OrgID     string    `json:"orgId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Path      string    `json:"path,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}
