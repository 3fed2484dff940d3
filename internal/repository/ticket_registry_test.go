package repository

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roseviahq/ticketbot/internal/domain"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

func TestCreateRejectsDuplicateActive(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)

	ticket, err := registry.Create("u1", "embed")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateOpen, ticket.State)
	require.Equal(t, "embed", ticket.ServiceType)
	require.WithinDuration(t, ticket.CreatedAt.Add(time.Hour), ticket.ExpiresAt, time.Second)

	_, err = registry.Create("u1", "logo")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateActiveTicket))
}

func TestDuplicateRejectionCarriesExistingChannel(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)

	_, err := registry.Create("u1", "embed")
	require.NoError(t, err)
	_, err = registry.AttachChannel("u1", "chan-1")
	require.NoError(t, err)

	_, err = registry.Create("u1", "logo")
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	require.Equal(t, "chan-1", domainErr.Details["channel_id"])
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)

	const attempts = 32
	var created, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.Create("u1", "embed"); err != nil {
				rejected.Add(1)
			} else {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), created.Load())
	require.Equal(t, int64(attempts-1), rejected.Load())
}

func TestTransitionCompareAndSet(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	_, err := registry.Create("u1", "embed")
	require.NoError(t, err)
	_, err = registry.AttachChannel("u1", "chan-1")
	require.NoError(t, err)

	ticket, err := registry.Transition("u1", domain.TicketStateUnlocked,
		domain.TicketStateAwaitingPayment, domain.TicketStateOpen)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateUnlocked, ticket.State)

	// The duplicate trigger must lose the compare-and-set.
	_, err = registry.Transition("u1", domain.TicketStateUnlocked,
		domain.TicketStateAwaitingPayment, domain.TicketStateOpen)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestTransitionMissingTicket(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	_, err := registry.Transition("ghost", domain.TicketStateUnlocked, domain.TicketStateOpen)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestAttachChannelOnlyOnce(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	_, err := registry.Create("u1", "embed")
	require.NoError(t, err)

	_, err = registry.AttachChannel("u1", "chan-1")
	require.NoError(t, err)
	_, err = registry.AttachChannel("u1", "chan-2")
	require.Error(t, err)

	ticket, ok := registry.Get("u1")
	require.True(t, ok)
	require.Equal(t, "chan-1", ticket.ChannelID)
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	ticket, err := registry.Create("u1", "embed")
	require.NoError(t, err)

	registry.Remove("u1", ticket.CreatedAt)
	registry.Remove("u1", ticket.CreatedAt)

	_, ok := registry.Get("u1")
	require.False(t, ok)
}

func TestRemoveSparesReplacedTicket(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	stale, err := registry.Create("u1", "embed")
	require.NoError(t, err)

	_, err = registry.Close("u1", domain.TicketStateOpen)
	require.NoError(t, err)
	_, err = registry.Create("u1", "logo")
	require.NoError(t, err)

	// A rollback carrying the stale ticket's identity must not evict the
	// replacement.
	registry.Remove("u1", stale.CreatedAt.Add(-time.Minute))

	current, ok := registry.Get("u1")
	require.True(t, ok)
	require.Equal(t, "logo", current.ServiceType)
}

func TestCloseFreesSlotAtomically(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	_, err := registry.Create("u1", "embed")
	require.NoError(t, err)
	_, err = registry.AttachChannel("u1", "chan-1")
	require.NoError(t, err)

	closed, err := registry.Close("u1",
		domain.TicketStateOpen, domain.TicketStateAwaitingPayment, domain.TicketStateUnlocked)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateClosed, closed.State)

	_, ok := registry.Get("u1")
	require.False(t, ok)

	_, err = registry.Close("u1", domain.TicketStateOpen)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestReopenAfterCloseGetsFreshTicket(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	_, err := registry.Create("u1", "embed")
	require.NoError(t, err)
	_, err = registry.AttachChannel("u1", "chan-1")
	require.NoError(t, err)

	_, err = registry.Close("u1",
		domain.TicketStateOpen, domain.TicketStateAwaitingPayment, domain.TicketStateUnlocked)
	require.NoError(t, err)

	ticket, err := registry.Create("u1", "logo")
	require.NoError(t, err)
	require.Equal(t, "logo", ticket.ServiceType)
	require.Empty(t, ticket.ChannelID)
}

func TestReturnedTicketsAreCopies(t *testing.T) {
	t.Parallel()

	registry := NewTicketRegistry(time.Hour)
	ticket, err := registry.Create("u1", "embed")
	require.NoError(t, err)

	ticket.State = domain.TicketStateClosed

	stored, ok := registry.Get("u1")
	require.True(t, ok)
	require.Equal(t, domain.TicketStateOpen, stored.State)
}
