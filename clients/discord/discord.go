package discord

import (
	"botconsole/clients/notifier"
	"botconsole/config"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorSandbox    = 0xF1C40F // yellow, matches the sandbox badge
	colorProduction = 0xE74C3C // red
)

// DiscordClient announces trading mode changes to a Discord channel.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.ChannelID

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord mode notifications disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
		}
	}

	logger.Info("discord bot initialized", zap.String("channelID", channelID))

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
	}
}

// SendModeChange posts a mode change embed.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendModeChange(change notifier.ModeChange) {
	if dc.session == nil || dc.channelID == "" {
		dc.logger.Debug("discord not configured, skipping mode notification")
		return
	}

	embed := buildModeEmbed(change)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord mode notification",
		zap.String("attempt", change.AttemptID),
		zap.String("to", change.To),
	)
}

func buildModeEmbed(change notifier.ModeChange) *discordgo.MessageEmbed {
	color := colorSandbox
	if change.IsProduction() {
		color = colorProduction
	}

	title := "Trading mode switched"
	if change.Kind == notifier.ChangeKindReset {
		title = "Trading mode reset"
	}

	var fields []*discordgo.MessageEmbedField
	if change.From != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "From", Value: change.From, Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "To", Value: change.To, Inline: true})
	if change.Warning != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "⚠️ Warning", Value: change.Warning})
	}

	ts := change.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	footer := "botconsole"
	if change.AttemptID != "" {
		footer = fmt.Sprintf("botconsole * attempt %s", change.AttemptID)
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: change.Message,
		Color:       color,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footer,
		},
		Timestamp: ts.Format(time.RFC3339),
	}
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
