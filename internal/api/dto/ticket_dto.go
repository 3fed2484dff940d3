package dto

import (
	"time"

	"github.com/roseviahq/ticketbot/internal/domain"
)

// UnlockRequest is the payment webhook payload. Processors disagree on the
// identifier field name, so both spellings are accepted.
type UnlockRequest struct {
	OwnerID string `json:"owner_id"`
	UserID  string `json:"user_id"`
	EventID string `json:"event_id"`
}

// Owner returns the canonical owner identifier from the payload.
func (r UnlockRequest) Owner() string {
	if r.OwnerID != "" {
		return r.OwnerID
	}
	return r.UserID
}

// AdminLoginRequest payload.
type AdminLoginRequest struct {
	AdministratorID string `json:"administrator_id"`
	Password        string `json:"password"`
}

// AdminLoginResponse payload.
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketResponse mirrors a ticket for API callers.
type TicketResponse struct {
	OwnerID     string             `json:"owner_id"`
	ServiceType string             `json:"service_type"`
	ChannelID   string             `json:"channel_id"`
	State       domain.TicketState `json:"state"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// FromTicket maps the domain entity.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		OwnerID:     ticket.OwnerID,
		ServiceType: ticket.ServiceType,
		ChannelID:   ticket.ChannelID,
		State:       ticket.State,
		CreatedAt:   ticket.CreatedAt,
		ExpiresAt:   ticket.ExpiresAt,
	}
}
