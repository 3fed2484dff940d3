package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/roseviahq/ticketbot/internal/events"
)

// NotificationService forwards lifecycle events to the operations channel:
// structured logs always, plus an optional ops webhook stub.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	webhookURL string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, webhookURL string) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketOpened, n.handleTicketOpened)
	n.dispatcher.Subscribe(events.EventTicketUnlocked, n.handleTicketUnlocked)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
}

func (n *NotificationService) handleTicketOpened(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketOpened",
		zap.String("owner_id", event.OwnerID),
		zap.String("channel_id", event.ChannelID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketUnlocked(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketUnlocked",
		zap.String("owner_id", event.OwnerID),
		zap.String("actor", event.Actor.Type),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketClosed",
		zap.String("owner_id", event.OwnerID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.webhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.webhookURL),
		zap.String("owner_id", event.OwnerID),
		zap.String("event_type", string(event.Type)))
}
