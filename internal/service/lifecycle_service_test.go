package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roseviahq/ticketbot/internal/domain"
	"github.com/roseviahq/ticketbot/internal/gateway"
	"github.com/roseviahq/ticketbot/internal/observability"
	"github.com/roseviahq/ticketbot/internal/repository"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
	"go.uber.org/zap"
)

type permGrant struct {
	channelID   string
	principalID string
	perm        gateway.Permission
}

type sentMessage struct {
	channelID string
	title     string
}

// fakeGateway records calls and lets tests inject failures per operation.
// When the closure-notice channels are set, sending the "Ticket Closed"
// message parks until released, letting tests interleave work with an
// in-flight close.
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	createErr error
	permErr   error
	sendErr   error
	created   []string
	deleted   []string
	grants    []permGrant
	messages  []sentMessage

	closeNoticeEntered chan struct{}
	closeNoticeRelease chan struct{}
}

func (g *fakeGateway) CreateChannel(_ context.Context, name string, _ gateway.ChannelPolicy) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.seq++
	channelID := fmt.Sprintf("chan-%d", g.seq)
	g.created = append(g.created, channelID)
	return channelID, nil
}

func (g *fakeGateway) SetPermission(_ context.Context, channelID, principalID string, perm gateway.Permission) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.permErr != nil {
		return g.permErr
	}
	g.grants = append(g.grants, permGrant{channelID: channelID, principalID: principalID, perm: perm})
	return nil
}

func (g *fakeGateway) SendMessage(_ context.Context, channelID string, msg gateway.Message) error {
	if msg.Title == "Ticket Closed" && g.closeNoticeEntered != nil {
		g.closeNoticeEntered <- struct{}{}
		<-g.closeNoticeRelease
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.messages = append(g.messages, sentMessage{channelID: channelID, title: msg.Title})
	return nil
}

func (g *fakeGateway) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

func (g *fakeGateway) messagesWithTitle(title string) []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentMessage
	for _, m := range g.messages {
		if m.title == title {
			out = append(out, m)
		}
	}
	return out
}

func (g *fakeGateway) lastGrant() (permGrant, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.grants) == 0 {
		return permGrant{}, false
	}
	return g.grants[len(g.grants)-1], true
}

func (g *fakeGateway) setCreateErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

func newTestService(t *testing.T, gw *fakeGateway, ttl time.Duration) *LifecycleService {
	t.Helper()
	s := NewLifecycleService(LifecycleDependencies{
		Registry: repository.NewTicketRegistry(ttl),
		Gateway:  gw,
		Logger:   zap.NewNop(),
		Metrics:  observability.NewMetrics(),
		TTL:      ttl,
		PaymentLinks: map[string]string{
			"embed": "https://pay.example/embed",
			"logo":  "https://pay.example/logo",
		},
		ChannelPrefix: "ticket-",
	})
	t.Cleanup(s.Shutdown)
	return s
}

func TestOpenTicketCreatesChannelAndAwaitsPayment(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	ticket, err := s.OpenTicket(context.Background(), "u1", "Rosevia Fan", "embed")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateAwaitingPayment, ticket.State)
	require.Equal(t, "chan-1", ticket.ChannelID)
	require.Equal(t, 1, gw.createdCount())

	instructions := gw.messagesWithTitle("New Ticket: EMBED")
	require.Len(t, instructions, 1)
	require.Equal(t, "chan-1", instructions[0].channelID)
}

func TestOpenTicketUnknownService(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "nft-drop")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
	require.Equal(t, 0, gw.createdCount())
}

func TestOpenTicketRejectsSecondActiveTicket(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	_, err = s.OpenTicket(context.Background(), "u1", "user", "logo")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateActiveTicket))
	require.Equal(t, 1, gw.createdCount())
}

func TestOpenTicketRollsBackOnChannelCreateFailure(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	gw.setCreateErr(errors.New("api unavailable"))
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeChannelCreateFailed))

	// The slot must be free again once the platform recovers.
	gw.setCreateErr(nil)
	ticket, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateAwaitingPayment, ticket.State)
}

func TestConfirmPaymentGrantsPostingOnce(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	ticket, err := s.ConfirmPayment(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateUnlocked, ticket.State)

	grant, ok := gw.lastGrant()
	require.True(t, ok)
	require.Equal(t, "chan-1", grant.channelID)
	require.Equal(t, "u1", grant.principalID)
	require.True(t, grant.perm.CanView)
	require.True(t, grant.perm.CanPost)

	// Duplicate webhook delivery: rejected, no second grant or message.
	_, err = s.ConfirmPayment(context.Background(), "u1")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	require.Len(t, gw.messagesWithTitle("Payment Confirmed"), 1)
}

func TestConfirmPaymentUnknownOwner(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.ConfirmPayment(context.Background(), "ghost")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotFound))
}

func TestConfirmPaymentKeepsTransitionWhenGrantFails(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	gw.mu.Lock()
	gw.permErr = errors.New("missing permissions")
	gw.mu.Unlock()

	ticket, err := s.ConfirmPayment(context.Background(), "u1")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodePermissionEditFailed))
	require.NotNil(t, ticket)
	require.Equal(t, domain.TicketStateUnlocked, ticket.State)

	// The unlock is committed, so a retry cannot unlock twice.
	_, err = s.ConfirmPayment(context.Background(), "u1")
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestManualUnlockMatchesConfirmPayment(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	ticket, err := s.ManualUnlock(context.Background(), "u1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateUnlocked, ticket.State)

	grant, ok := gw.lastGrant()
	require.True(t, ok)
	require.True(t, grant.perm.CanPost)
}

func TestCloseTicketRevokesAccessAndFreesSlot(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	ticket, err := s.CloseTicket(context.Background(), "u1", domain.CloseReasonExplicit)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateClosed, ticket.State)
	require.Len(t, gw.messagesWithTitle("Ticket Closed"), 1)

	grant, ok := gw.lastGrant()
	require.True(t, ok)
	require.False(t, grant.perm.CanView)
	require.False(t, grant.perm.CanPost)

	// Slot is free: the reopen gets a fresh channel.
	reopened, err := s.OpenTicket(context.Background(), "u1", "user", "logo")
	require.NoError(t, err)
	require.NotEqual(t, ticket.ChannelID, reopened.ChannelID)
}

func TestCloseTicketDeletesChannelWhenConfigured(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := NewLifecycleService(LifecycleDependencies{
		Registry:      repository.NewTicketRegistry(time.Hour),
		Gateway:       gw,
		Logger:        zap.NewNop(),
		Metrics:       observability.NewMetrics(),
		TTL:           time.Hour,
		PaymentLinks:  map[string]string{"embed": "https://pay.example/embed"},
		DeleteOnClose: true,
	})
	t.Cleanup(s.Shutdown)

	ticket, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	_, err = s.CloseTicket(context.Background(), "u1", domain.CloseReasonExplicit)
	require.NoError(t, err)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Equal(t, []string{ticket.ChannelID}, gw.deleted)
}

func TestCloseTicketTwiceFails(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	_, err = s.CloseTicket(context.Background(), "u1", domain.CloseReasonExplicit)
	require.NoError(t, err)
	_, err = s.CloseTicket(context.Background(), "u1", domain.CloseReasonExplicit)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestExpiryClosesTicket(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, 40*time.Millisecond)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(gw.messagesWithTitle("Ticket Closed")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The slot is free again; the timeout close must not have left a timer
	// that can fire against the reopened ticket.
	ticket, err := s.OpenTicket(context.Background(), "u1", "user", "logo")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStateAwaitingPayment, ticket.State)
}

func TestReopenDuringCloseIsNotEvicted(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		closeNoticeEntered: make(chan struct{}),
		closeNoticeRelease: make(chan struct{}),
	}
	s := newTestService(t, gw, time.Hour)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)

	closeDone := make(chan error, 1)
	go func() {
		_, err := s.CloseTicket(context.Background(), "u1", domain.CloseReasonExplicit)
		closeDone <- err
	}()

	// The Closed transition has committed; the close path is now parked in
	// gateway I/O with the slot already free.
	<-gw.closeNoticeEntered

	reopened, err := s.OpenTicket(context.Background(), "u1", "user", "logo")
	require.NoError(t, err)
	require.NotEmpty(t, reopened.ChannelID)

	close(gw.closeNoticeRelease)
	require.NoError(t, <-closeDone)

	// The finished close only touched the old ticket: the reopened one still
	// holds the slot and can be unlocked.
	unlocked, err := s.ConfirmPayment(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, reopened.ChannelID, unlocked.ChannelID)

	_, err = s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateActiveTicket))
}

func TestExplicitCloseCancelsExpiry(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	s := newTestService(t, gw, 60*time.Millisecond)

	_, err := s.OpenTicket(context.Background(), "u1", "user", "embed")
	require.NoError(t, err)
	_, err = s.CloseTicket(context.Background(), "u1", domain.CloseReasonExplicit)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	require.Len(t, gw.messagesWithTitle("Ticket Closed"), 1)
}
