package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateOpen            TicketState = "OPEN"
	TicketStateAwaitingPayment TicketState = "AWAITING_PAYMENT"
	TicketStateUnlocked        TicketState = "UNLOCKED"
	TicketStateClosed          TicketState = "CLOSED"
)

// CloseReason records why a ticket was closed.
type CloseReason string

const (
	CloseReasonTimeout        CloseReason = "timeout"
	CloseReasonExplicit       CloseReason = "explicit"
	CloseReasonAdministrative CloseReason = "administrative"
)

// Ticket binds an owner to a private support channel and a lifecycle state.
// The owner ID is the registry key; at most one non-Closed ticket exists per
// owner at any instant.
type Ticket struct {
	OwnerID     string
	ServiceType string
	ChannelID   string
	State       TicketState
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Active reports whether the ticket still occupies the owner's slot.
func (t *Ticket) Active() bool {
	return t.State != TicketStateClosed
}
