// Package bot runs the auction from Discord slash commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/bot/commands"
	"github.com/jensholdgaard/cricket-auction/internal/config"
)

// ErrNoToken is returned by New when the bot is not configured.
var ErrNoToken = errors.New("discord token is not set")

// Bot gives the auctioneer slash commands in a Discord guild.
type Bot struct {
	session  *discordgo.Session
	guildID  string
	logger   *slog.Logger
	handlers *commands.Handlers
}

// New prepares a session for cfg. Nothing is dialled until Run.
func New(cfg config.DiscordConfig, auctionMgr *auction.Manager, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		session:  session,
		guildID:  cfg.GuildID,
		logger:   logger.With(slog.String("component", "bot")),
		handlers: commands.NewHandlers(auctionMgr, tp),
	}, nil
}

// Run connects, registers the slash commands and serves interactions
// until ctx is done. The guild commands are removed again on the way out.
func (b *Bot) Run(ctx context.Context) error {
	removeReady := b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "connected to discord",
			slog.String("user", r.User.Username),
			slog.Int("guilds", len(r.Guilds)),
		)
	})
	defer removeReady()
	removeInteractions := b.session.AddHandler(b.handlers.InteractionCreate)
	defer removeInteractions()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	defer b.session.Close()

	appID := b.session.State.User.ID
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, commands.SlashCommands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))

	<-ctx.Done()

	for _, cmd := range registered {
		if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
			b.logger.Warn("removing slash command",
				slog.String("command", cmd.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
