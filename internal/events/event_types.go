package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTenantSignedUp   EventType = "tenant_signed_up"
	EventSessionSignedOut EventType = "session_signed_out"
)

// Actor identifies who caused an event.
type Actor struct {
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subdomain string      `json:"subdomain,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subdomain string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subdomain: subdomain,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TenantSignedUpPayload payload.
type TenantSignedUpPayload struct {
	TenantID   string `json:"tenant_id"`
	Name       string `json:"name"`
	OwnerEmail string `json:"owner_email"`
	URL        string `json:"url"`
}

// SessionSignedOutPayload payload.
type SessionSignedOutPayload struct {
	SessionID string `json:"session_id"`
}
