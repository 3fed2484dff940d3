package bot

import (
	"sort"

	"github.com/bwmarrin/discordgo"
)

const serviceSelectID = "service_select"

// catalogOrder fixes the menu ordering for the known services; anything
// configured beyond the built-in catalog is appended after, sorted by value.
var catalogOrder = []struct {
	Value string
	Label string
}{
	{"embed", "Embed"},
	{"logo", "Logo"},
	{"setup", "Setup"},
	{"roles", "Roles"},
	{"bot", "Bot Setup"},
}

func serviceMenuOptions(links map[string]string) []discordgo.SelectMenuOption {
	options := make([]discordgo.SelectMenuOption, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, entry := range catalogOrder {
		if _, ok := links[entry.Value]; !ok {
			continue
		}
		options = append(options, discordgo.SelectMenuOption{Label: entry.Label, Value: entry.Value})
		seen[entry.Value] = true
	}

	extras := make([]string, 0, len(links))
	for value := range links {
		if !seen[value] {
			extras = append(extras, value)
		}
	}
	sort.Strings(extras)
	for _, value := range extras {
		options = append(options, discordgo.SelectMenuOption{Label: value, Value: value})
	}
	return options
}

func (b *Bot) sendServiceMenu(channelID string) error {
	menu := discordgo.SelectMenu{
		CustomID:    serviceSelectID,
		Placeholder: "Select a service",
		Options:     serviceMenuOptions(b.links),
	}
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: "Choose a service to open a ticket:",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{menu},
			},
		},
	})
	return err
}
