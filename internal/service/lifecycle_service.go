package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roseviahq/ticketbot/internal/domain"
	"github.com/roseviahq/ticketbot/internal/events"
	"github.com/roseviahq/ticketbot/internal/gateway"
	"github.com/roseviahq/ticketbot/internal/observability"
	"github.com/roseviahq/ticketbot/internal/repository"
	"github.com/roseviahq/ticketbot/internal/scheduler"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

// Embed colors for ticket messages.
const (
	colorTicketOpened   = 0x00BFFF
	colorTicketUnlocked = 0x32CD32
	colorTicketClosed   = 0xFF4500
)

const expiryCloseTimeout = 30 * time.Second

// LifecycleService orchestrates the ticket lifecycle: open, payment
// confirmation, manual unlock and close. It is the only writer of ticket
// state; every trigger (Discord interaction, payment webhook, admin API,
// expiration timer) funnels through it. Registry transitions commit before
// any gateway call, so a committed transition is the authority for "may I
// now call the gateway".
type LifecycleService struct {
	registry      repository.TicketRegistry
	gateway       gateway.ChannelGateway
	timers        *scheduler.ExpirationScheduler
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
	ttl           time.Duration
	paymentLinks  map[string]string
	channelPrefix string
	deleteOnClose bool
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Registry      repository.TicketRegistry
	Gateway       gateway.ChannelGateway
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	TTL           time.Duration
	PaymentLinks  map[string]string
	ChannelPrefix string
	DeleteOnClose bool
}

// NewLifecycleService constructs the service and its expiration scheduler.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	prefix := deps.ChannelPrefix
	if prefix == "" {
		prefix = "ticket-"
	}
	s := &LifecycleService{
		registry:      deps.Registry,
		gateway:       deps.Gateway,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		ttl:           deps.TTL,
		paymentLinks:  deps.PaymentLinks,
		channelPrefix: prefix,
		deleteOnClose: deps.DeleteOnClose,
	}
	s.timers = scheduler.NewExpirationScheduler(deps.Logger, s.handleExpiry)
	return s
}

// OpenTicket creates a ticket and its private channel for the owner.
// The registry entry is created first to reserve the owner's slot; if
// channel creation then fails, the entry is rolled back so the owner can
// retry.
func (s *LifecycleService) OpenTicket(ctx context.Context, ownerID, username, serviceType string) (*domain.Ticket, error) {
	link, ok := s.paymentLinks[serviceType]
	if !ok {
		return nil, apperrors.NewValidationError("unknown service type", map[string]any{
			"service_type": serviceType,
		})
	}

	ticket, err := s.registry.Create(ownerID, serviceType)
	if err != nil {
		s.metrics.RecordLifecycle("open", "rejected")
		return nil, err
	}

	channelID, err := s.gateway.CreateChannel(ctx, s.channelName(username), gateway.ChannelPolicy{OwnerID: ownerID})
	if err != nil {
		s.registry.Remove(ownerID, ticket.CreatedAt)
		s.metrics.RecordLifecycle("open", apperrors.CodeChannelCreateFailed)
		s.logger.Error("channel creation failed, ticket rolled back",
			zap.String("owner_id", ownerID), zap.Error(err))
		return nil, apperrors.NewChannelCreateFailed(err)
	}

	ticket, err = s.registry.AttachChannel(ownerID, channelID)
	if err != nil {
		// A racing close removed the ticket between create and attach;
		// reclaim the channel we just made.
		if deleteErr := s.gateway.DeleteChannel(ctx, channelID); deleteErr != nil {
			s.logger.Error("failed to reclaim orphaned channel",
				zap.String("channel_id", channelID), zap.Error(deleteErr))
		}
		return nil, err
	}

	if err := s.gateway.SendMessage(ctx, channelID, paymentInstructions(ownerID, serviceType, link)); err != nil {
		// The ticket and channel exist; report and continue.
		s.logger.Warn("failed to send payment instructions",
			zap.String("owner_id", ownerID), zap.String("channel_id", channelID), zap.Error(err))
	}

	if updated, err := s.registry.Transition(ownerID, domain.TicketStateAwaitingPayment, domain.TicketStateOpen); err == nil {
		ticket = updated
	}

	s.timers.Arm(ownerID, channelID, s.ttl)
	s.metrics.RecordLifecycle("open", "ok")
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketOpened,
		OwnerID:   ownerID,
		ChannelID: channelID,
		Actor:     events.Actor{Type: events.ActorUser, ID: ownerID},
		Payload: events.TicketOpenedPayload{
			ServiceType: serviceType,
			ExpiresAt:   ticket.ExpiresAt,
		},
	})
	s.logger.Info("ticket opened",
		zap.String("owner_id", ownerID),
		zap.String("service_type", serviceType),
		zap.String("channel_id", channelID))
	return ticket, nil
}

// ConfirmPayment unlocks the owner's ticket after the payment processor
// confirms. A duplicate or stale confirmation gets INVALID_TRANSITION and
// causes no second gateway side effect.
func (s *LifecycleService) ConfirmPayment(ctx context.Context, ownerID string) (*domain.Ticket, error) {
	return s.unlock(ctx, ownerID, events.Actor{Type: events.ActorSystem})
}

// ManualUnlock is the administrative equivalent of ConfirmPayment.
func (s *LifecycleService) ManualUnlock(ctx context.Context, ownerID, administratorID string) (*domain.Ticket, error) {
	return s.unlock(ctx, ownerID, events.Actor{Type: events.ActorAdmin, ID: administratorID})
}

func (s *LifecycleService) unlock(ctx context.Context, ownerID string, actor events.Actor) (*domain.Ticket, error) {
	current, ok := s.registry.Get(ownerID)
	if !ok {
		s.metrics.RecordLifecycle("unlock", apperrors.CodeTicketNotFound)
		return nil, apperrors.NewTicketNotFound(ownerID)
	}
	if current.ChannelID == "" {
		return nil, apperrors.NewNotFound("ticket channel", map[string]any{"owner_id": ownerID})
	}

	ticket, err := s.registry.Transition(ownerID, domain.TicketStateUnlocked,
		domain.TicketStateAwaitingPayment, domain.TicketStateOpen)
	if err != nil {
		s.metrics.RecordLifecycle("unlock", apperrors.CodeInvalidTransition)
		return nil, err
	}

	if err := s.gateway.SetPermission(ctx, ticket.ChannelID, ownerID, gateway.Permission{CanView: true, CanPost: true}); err != nil {
		// The transition is committed and stays committed; the caller is
		// told the grant itself failed.
		s.metrics.RecordLifecycle("unlock", apperrors.CodePermissionEditFailed)
		s.logger.Error("failed to grant posting permission",
			zap.String("owner_id", ownerID), zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		return ticket, apperrors.NewPermissionEditFailed(err)
	}

	if err := s.gateway.SendMessage(ctx, ticket.ChannelID, paymentConfirmed(ownerID)); err != nil {
		s.logger.Warn("failed to send confirmation message",
			zap.String("owner_id", ownerID), zap.String("channel_id", ticket.ChannelID), zap.Error(err))
	}

	s.metrics.RecordLifecycle("unlock", "ok")
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketUnlocked,
		OwnerID:   ownerID,
		ChannelID: ticket.ChannelID,
		Actor:     actor,
		Payload:   events.TicketUnlockedPayload{ServiceType: ticket.ServiceType},
	})
	s.logger.Info("ticket unlocked",
		zap.String("owner_id", ownerID), zap.String("actor", actor.Type))
	return ticket, nil
}

// CloseTicket closes the owner's ticket from any non-Closed state. The
// registry frees the slot atomically with the Closed transition, so the
// notice, channel reclaim and timer cancellation that follow only ever act
// on the closed entity — a reopen landing mid-close is untouched.
func (s *LifecycleService) CloseTicket(ctx context.Context, ownerID string, reason domain.CloseReason) (*domain.Ticket, error) {
	ticket, err := s.registry.Close(ownerID,
		domain.TicketStateOpen, domain.TicketStateAwaitingPayment, domain.TicketStateUnlocked)
	if err != nil {
		s.metrics.RecordLifecycle("close", apperrors.CodeInvalidTransition)
		return nil, err
	}

	s.timers.Cancel(ownerID, ticket.ChannelID)

	if ticket.ChannelID != "" {
		if err := s.gateway.SendMessage(ctx, ticket.ChannelID, closureNotice(reason)); err != nil {
			s.logger.Warn("failed to send closure notice",
				zap.String("owner_id", ownerID), zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		}
		s.reclaimChannel(ctx, ownerID, ticket.ChannelID)
	}

	s.metrics.RecordLifecycle("close", "ok")
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClosed,
		OwnerID:   ownerID,
		ChannelID: ticket.ChannelID,
		Actor:     closeActor(reason),
		Payload: events.TicketClosedPayload{
			ServiceType: ticket.ServiceType,
			Reason:      reason,
		},
	})
	s.logger.Info("ticket closed",
		zap.String("owner_id", ownerID), zap.String("reason", string(reason)))
	return ticket, nil
}

// Shutdown stops all pending expiration timers.
func (s *LifecycleService) Shutdown() {
	s.timers.Shutdown()
}

// reclaimChannel applies the configured close policy: delete the channel
// outright, or keep it and revoke the owner's view so staff retain the
// conversation.
func (s *LifecycleService) reclaimChannel(ctx context.Context, ownerID, channelID string) {
	if s.deleteOnClose {
		if err := s.gateway.DeleteChannel(ctx, channelID); err != nil {
			s.logger.Error("failed to delete closed ticket channel",
				zap.String("channel_id", channelID), zap.Error(err))
		}
		return
	}
	if err := s.gateway.SetPermission(ctx, channelID, ownerID, gateway.Permission{}); err != nil {
		s.logger.Error("failed to revoke channel access",
			zap.String("channel_id", channelID), zap.Error(err))
	}
}

// handleExpiry runs when an armed timer fires. The token is the channel ref
// captured at arm time; a stale, replaced or already-closed ticket makes
// this a silent no-op.
func (s *LifecycleService) handleExpiry(ownerID, token string) {
	current, ok := s.registry.Get(ownerID)
	if !ok || current.ChannelID != token || !current.Active() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), expiryCloseTimeout)
	defer cancel()

	if _, err := s.CloseTicket(ctx, ownerID, domain.CloseReasonTimeout); err != nil {
		// Lost the race against an explicit close; nothing to do.
		if apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
			return
		}
		s.logger.Error("expiry close failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

func (s *LifecycleService) channelName(username string) string {
	name := strings.ToLower(strings.TrimSpace(username))
	name = strings.ReplaceAll(name, " ", "-")
	if name == "" {
		name = uuid.NewString()[:8]
	}
	return s.channelPrefix + name
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func closeActor(reason domain.CloseReason) events.Actor {
	switch reason {
	case domain.CloseReasonAdministrative:
		return events.Actor{Type: events.ActorAdmin}
	case domain.CloseReasonExplicit:
		return events.Actor{Type: events.ActorUser}
	default:
		return events.Actor{Type: events.ActorSystem}
	}
}

func paymentInstructions(ownerID, serviceType, link string) gateway.Message {
	return gateway.Message{
		Title: fmt.Sprintf("New Ticket: %s", strings.ToUpper(serviceType)),
		Body: fmt.Sprintf("Hello <@%s>!\n\nYou selected **%s**.\n\nPlease complete payment using the link below.",
			ownerID, serviceType),
		Fields: []gateway.MessageField{
			{Name: "Payment Link", Value: fmt.Sprintf("[Click to Pay](%s)", link)},
		},
		Color: colorTicketOpened,
	}
}

func paymentConfirmed(ownerID string) gateway.Message {
	return gateway.Message{
		Title: "Payment Confirmed",
		Body: fmt.Sprintf("Welcome <@%s>!\n\nYour payment has been verified. You may now chat here with our team.",
			ownerID),
		Color: colorTicketUnlocked,
	}
}

func closureNotice(reason domain.CloseReason) gateway.Message {
	body := "This ticket has been closed. If you still need help, please open a new ticket."
	if reason == domain.CloseReasonTimeout {
		body = "This ticket has been closed due to inactivity. If you still need help, please open a new ticket."
	}
	return gateway.Message{
		Title: "Ticket Closed",
		Body:  body,
		Color: colorTicketClosed,
	}
}
