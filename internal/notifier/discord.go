package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordNotifier sends alert dispatches to a single Discord channel.
type DiscordNotifier struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier builds a DiscordNotifier against a bot token and
// channel id. Callers wanting dry-run fallback on a missing token use
// New below instead of calling this directly.
func NewDiscordNotifier(logger *zap.Logger, token, channelID string) (*DiscordNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notifier: create discord session: %w", err)
	}
	return &DiscordNotifier{logger: logger, session: session, channelID: channelID}, nil
}

func (d *DiscordNotifier) SendAlert(_ context.Context, msg AlertMessage) error {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s: %s", statusEmoji(msg.Status), marketLabel(msg)),
		Description: fmt.Sprintf("side=%s score=%s", msg.Side, msg.Score),
		Fields:      discordFields(msg),
	}
	_, err := d.session.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content: FormatMessage(msg),
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		d.logger.Error("failed to send discord alert", zap.Error(err))
		return err
	}
	return nil
}

func (d *DiscordNotifier) Close() error {
	return d.session.Close()
}

func marketLabel(msg AlertMessage) string {
	if msg.MarketName != "" {
		return msg.MarketName
	}
	return fmt.Sprintf("market %d", msg.MarketID)
}

func statusEmoji(status string) string {
	if status == "high" {
		return "\U0001F6A8"
	}
	return "\U0001F440"
}

func discordFields(msg AlertMessage) []*discordgo.MessageEmbedField {
	fields := make([]*discordgo.MessageEmbedField, 0, 2)
	if len(msg.ReasonTypes) > 0 {
		value := ""
		for _, r := range msg.ReasonTypes {
			value += "- " + r + "\n"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Signals", Value: value})
	}
	if len(msg.Wallets) > 0 {
		value := ""
		for _, w := range msg.Wallets {
			value += w + "\n"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Wallets", Value: value})
	}
	return fields
}

// New builds the configured Notifier: a DiscordNotifier when a bot
// token is present, otherwise a LogNotifier running in dry-run mode.
func New(logger *zap.Logger, token, channelID string) Notifier {
	if token == "" {
		return NewLogNotifier(logger)
	}
	d, err := NewDiscordNotifier(logger, token, channelID)
	if err != nil {
		logger.Warn("falling back to dry-run notifier", zap.Error(err))
		return NewLogNotifier(logger)
	}
	return d
}
