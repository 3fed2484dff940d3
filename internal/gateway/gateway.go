package gateway

import "context"

// Permission describes per-principal channel access.
type Permission struct {
	CanView bool
	CanPost bool
}

// ChannelPolicy fixes initial visibility when a ticket channel is created:
// hidden from everyone, view-only for the owner, view+post for the support
// role. The role itself is adapter configuration.
type ChannelPolicy struct {
	OwnerID string
}

// MessageField is a titled section inside a rich message.
type MessageField struct {
	Name  string
	Value string
}

// Message is platform-neutral rich content posted to a ticket channel.
type Message struct {
	Title  string
	Body   string
	Fields []MessageField
	Color  int
}

// ChannelGateway is the chat-platform capability the lifecycle manager
// consumes. Calls may be slow and may fail; none are idempotent, so the
// lifecycle manager only invokes them after the corresponding registry
// transition has committed.
type ChannelGateway interface {
	CreateChannel(ctx context.Context, name string, policy ChannelPolicy) (string, error)
	SetPermission(ctx context.Context, channelID, principalID string, perm Permission) error
	SendMessage(ctx context.Context, channelID string, msg Message) error
	DeleteChannel(ctx context.Context, channelID string) error
}
