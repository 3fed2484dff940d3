package repository

import (
	"sync"
	"time"

	"github.com/roseviahq/ticketbot/internal/domain"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

// TicketRegistry is the sole source of truth for owner -> ticket state.
// All mutating operations are atomic with respect to each other; the
// compare-and-set Transition is how callers obtain exactly-once semantics
// for lifecycle state changes.
type TicketRegistry interface {
	// Create inserts a new Open ticket for the owner. It fails with
	// DUPLICATE_ACTIVE_TICKET if a non-Closed ticket already exists;
	// concurrent calls for the same owner yield exactly one winner.
	Create(ownerID, serviceType string) (*domain.Ticket, error)
	// AttachChannel stores the channel ref on a freshly created ticket.
	// Only valid while the ticket is Open and has no channel yet.
	AttachChannel(ownerID, channelID string) (*domain.Ticket, error)
	Get(ownerID string) (*domain.Ticket, bool)
	// Transition applies a compare-and-set state change: it succeeds only
	// if the ticket's current state is one of the expected states, and
	// fails with INVALID_TRANSITION otherwise (no ticket, already
	// unlocked, already closed).
	Transition(ownerID string, next domain.TicketState, expected ...domain.TicketState) (*domain.Ticket, error)
	// Close applies the compare-and-set transition to Closed and deletes
	// the entry in the same critical section. The owner's slot frees at the
	// instant the transition commits, so a reopen racing the rest of the
	// close path installs a new entity the closer can never touch.
	Close(ownerID string, expected ...domain.TicketState) (*domain.Ticket, error)
	// Remove rolls back an entry, but only while it is still the ticket
	// created at the given instant; a slot already reclaimed and reopened
	// by another actor is left alone. Removing an absent or replaced entry
	// is a no-op so racing paths stay idempotent.
	Remove(ownerID string, createdAt time.Time)
}

// memoryRegistry keeps active tickets in process memory. One mutex guards
// the map; operations are short and never perform I/O under the lock.
type memoryRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	tickets map[string]domain.Ticket
	now     func() time.Time
}

// NewTicketRegistry builds an in-memory registry with the given ticket TTL.
func NewTicketRegistry(ttl time.Duration) TicketRegistry {
	return &memoryRegistry{
		ttl:     ttl,
		tickets: make(map[string]domain.Ticket),
		now:     time.Now,
	}
}

func (r *memoryRegistry) Create(ownerID, serviceType string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tickets[ownerID]; ok && existing.Active() {
		return nil, apperrors.NewDuplicateActiveTicket(existing.ChannelID)
	}

	now := r.now()
	ticket := domain.Ticket{
		OwnerID:     ownerID,
		ServiceType: serviceType,
		State:       domain.TicketStateOpen,
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.ttl),
	}
	r.tickets[ownerID] = ticket
	return copyOf(ticket), nil
}

func (r *memoryRegistry) AttachChannel(ownerID, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ownerID]
	if !ok {
		return nil, apperrors.NewInvalidTransition("no ticket to attach channel to", map[string]any{
			"owner_id": ownerID,
		})
	}
	if ticket.State != domain.TicketStateOpen || ticket.ChannelID != "" {
		return nil, apperrors.NewInvalidTransition("ticket already has a channel", map[string]any{
			"owner_id": ownerID,
			"state":    string(ticket.State),
		})
	}
	ticket.ChannelID = channelID
	r.tickets[ownerID] = ticket
	return copyOf(ticket), nil
}

func (r *memoryRegistry) Get(ownerID string) (*domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ownerID]
	if !ok {
		return nil, false
	}
	return copyOf(ticket), true
}

func (r *memoryRegistry) Transition(ownerID string, next domain.TicketState, expected ...domain.TicketState) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ownerID]
	if !ok {
		return nil, apperrors.NewInvalidTransition("no ticket for owner", map[string]any{
			"owner_id": ownerID,
		})
	}
	if !stateIn(ticket.State, expected) {
		return nil, apperrors.NewInvalidTransition("ticket not in expected state", map[string]any{
			"owner_id": ownerID,
			"state":    string(ticket.State),
		})
	}
	ticket.State = next
	r.tickets[ownerID] = ticket
	return copyOf(ticket), nil
}

func (r *memoryRegistry) Close(ownerID string, expected ...domain.TicketState) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ownerID]
	if !ok {
		return nil, apperrors.NewInvalidTransition("no ticket for owner", map[string]any{
			"owner_id": ownerID,
		})
	}
	if !stateIn(ticket.State, expected) {
		return nil, apperrors.NewInvalidTransition("ticket not in expected state", map[string]any{
			"owner_id": ownerID,
			"state":    string(ticket.State),
		})
	}
	ticket.State = domain.TicketStateClosed
	delete(r.tickets, ownerID)
	return copyOf(ticket), nil
}

func (r *memoryRegistry) Remove(ownerID string, createdAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket, ok := r.tickets[ownerID]; ok && ticket.CreatedAt.Equal(createdAt) {
		delete(r.tickets, ownerID)
	}
}

func stateIn(state domain.TicketState, candidates []domain.TicketState) bool {
	for _, candidate := range candidates {
		if state == candidate {
			return true
		}
	}
	return false
}

// copyOf hands callers their own ticket value; registry memory is never
// shared outside the lock.
func copyOf(ticket domain.Ticket) *domain.Ticket {
	return &ticket
}
