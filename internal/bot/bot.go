package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/roseviahq/ticketbot/internal/service"
	apperrors "github.com/roseviahq/ticketbot/pkg/util"
)

const interactionTimeout = 15 * time.Second

// Bot wires the inbound Discord triggers to the lifecycle service: the
// service select menu opens tickets, and the admin command posts the menu.
type Bot struct {
	session   *discordgo.Session
	lifecycle *service.LifecycleService
	links     map[string]string
	logger    *zap.Logger
}

// New constructs the trigger layer around an existing session.
func New(session *discordgo.Session, lifecycle *service.LifecycleService, links map[string]string, logger *zap.Logger) *Bot {
	return &Bot{
		session:   session,
		lifecycle: lifecycle,
		links:     links,
		logger:    logger,
	}
}

// Register attaches the gateway event handlers. Call before session.Open.
func (b *Bot) Register() {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onMessageCreate)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("logged in", zap.String("user", r.User.String()))
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()
	if data.CustomID != serviceSelectID || len(data.Values) == 0 {
		return
	}
	user := interactionUser(i)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	serviceType := data.Values[0]
	ticket, err := b.lifecycle.OpenTicket(ctx, user.ID, user.Username, serviceType)

	var content string
	switch {
	case err == nil:
		content = fmt.Sprintf("Ticket created: <#%s>", ticket.ChannelID)
	case apperrors.HasCode(err, apperrors.CodeDuplicateActiveTicket):
		content = "You already have an open ticket."
		if channelID := existingChannelID(err); channelID != "" {
			content = fmt.Sprintf("You already have an open ticket: <#%s>", channelID)
		}
	default:
		b.logger.Error("open ticket failed",
			zap.String("owner_id", user.ID), zap.String("service_type", serviceType), zap.Error(err))
		content = "Could not open a ticket right now, please try again later."
	}

	b.respondEphemeral(i, content)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content != "!send-tickets" {
		return
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil || perms&discordgo.PermissionAdministrator == 0 {
		return
	}
	if err := b.sendServiceMenu(m.ChannelID); err != nil {
		b.logger.Error("failed to post service menu",
			zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func existingChannelID(err error) string {
	domainErr := apperrors.ToDomainError(err)
	if domainErr == nil {
		return ""
	}
	if channelID, ok := domainErr.Details["channel_id"].(string); ok {
		return channelID
	}
	return ""
}
