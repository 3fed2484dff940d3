package events

import (
	"time"

	"github.com/roseviahq/ticketbot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened   EventType = "ticket_opened"
	EventTicketUnlocked EventType = "ticket_unlocked"
	EventTicketClosed   EventType = "ticket_closed"
)

// Actor types.
const (
	ActorUser   = "user"
	ActorAdmin  = "admin"
	ActorSystem = "system"
)

// Actor encapsulates who triggered an event.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Event represents a lifecycle event emitted by the ticket service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OwnerID   string      `json:"owner_id"`
	ChannelID string      `json:"channel_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	ServiceType string    `json:"service_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TicketUnlockedPayload payload.
type TicketUnlockedPayload struct {
	ServiceType string `json:"service_type"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ServiceType string             `json:"service_type"`
	Reason      domain.CloseReason `json:"reason"`
}
