package gateway

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/roseviahq/ticketbot/internal/config"
)

// DiscordGateway implements ChannelGateway on top of a discordgo session.
// Ticket channels are text channels under the configured category; the
// @everyone role is denied view so only the owner and the admin role see
// them.
type DiscordGateway struct {
	session     *discordgo.Session
	guildID     string
	categoryID  string
	adminRoleID string
	logger      *zap.Logger
}

// NewDiscordGateway constructs the adapter.
func NewDiscordGateway(session *discordgo.Session, cfg config.DiscordConfig, logger *zap.Logger) *DiscordGateway {
	return &DiscordGateway{
		session:     session,
		guildID:     cfg.GuildID,
		categoryID:  cfg.TicketCategoryID,
		adminRoleID: cfg.AdminRoleID,
		logger:      logger,
	}
}

// CreateChannel creates the private ticket channel and returns its ID.
func (g *DiscordGateway) CreateChannel(ctx context.Context, name string, policy ChannelPolicy) (string, error) {
	// The @everyone role ID equals the guild ID.
	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   g.guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    policy.OwnerID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel,
			Deny:  discordgo.PermissionSendMessages,
		},
		{
			ID:    g.adminRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		},
	}

	channel, err := g.session.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             g.categoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", err
	}
	g.logger.Info("ticket channel created", zap.String("channel_id", channel.ID), zap.String("name", name))
	return channel.ID, nil
}

// SetPermission edits the member overwrite on a ticket channel.
func (g *DiscordGateway) SetPermission(ctx context.Context, channelID, principalID string, perm Permission) error {
	var allow, deny int64
	if perm.CanView {
		allow |= discordgo.PermissionViewChannel
	} else {
		deny |= discordgo.PermissionViewChannel
	}
	if perm.CanPost {
		allow |= discordgo.PermissionSendMessages
	} else {
		deny |= discordgo.PermissionSendMessages
	}
	return g.session.ChannelPermissionSet(channelID, principalID, discordgo.PermissionOverwriteTypeMember, allow, deny)
}

// SendMessage posts a rich embed to the channel.
func (g *DiscordGateway) SendMessage(ctx context.Context, channelID string, msg Message) error {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       msg.Color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	for _, field := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  field.Name,
			Value: field.Value,
		})
	}
	_, err := g.session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

// DeleteChannel removes the ticket channel.
func (g *DiscordGateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.session.ChannelDelete(channelID)
	return err
}
