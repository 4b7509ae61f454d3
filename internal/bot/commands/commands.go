package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
)

// Args are the option values of one slash command, keyed by option name.
type Args map[string]any

func (a Args) str(name string) string {
	s, _ := a[name].(string)
	return strings.TrimSpace(s)
}

func (a Args) integer(name string) int64 {
	n, _ := a[name].(int64)
	return n
}

// Handlers process Discord interactions.
type Handlers struct {
	auction *auction.Manager
	tracer  trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(auctionMgr *auction.Manager, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		auction: auctionMgr,
		tracer:  tp.Tracer("github.com/jensholdgaard/cricket-auction/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	teamOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "team",
		Description: "Team id or name",
		Required:    true,
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        "auction-next",
			Description: "Put a random available player on the block",
		},
		{
			Name:        "auction-start",
			Description: "Put a specific player on the block",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player id or name",
					Required:    true,
				},
			},
		},
		{
			Name:        "bid",
			Description: "Bid for the player on the block",
			Options: []*discordgo.ApplicationCommandOption{
				teamOption,
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Bid in lakh (default: next increment)",
					Required:    false,
				},
			},
		},
		{
			Name:        "sell",
			Description: "Sell the player to the highest bidder",
		},
		{
			Name:        "pass",
			Description: "Mark the player on the block unsold",
		},
		{
			Name:        "next",
			Description: "Clear the block after a sale or pass",
		},
		{
			Name:        "status",
			Description: "Show the auction floor",
		},
		{
			Name:        "squad",
			Description: "Show a team's squad and purse",
			Options:     []*discordgo.ApplicationCommandOption{teamOption},
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	args := make(Args, len(data.Options))
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionInteger:
			args[opt.Name] = opt.IntValue()
		default:
			args[opt.Name] = opt.StringValue()
		}
	}
	respond(s, i, h.Handle(context.Background(), data.Name, args))
}

// Handle runs one command and returns the reply text.
func (h *Handlers) Handle(ctx context.Context, name string, args Args) string {
	ctx, span := h.tracer.Start(ctx, "Handle",
		trace.WithAttributes(attribute.String("command", name)),
	)
	defer span.End()

	var (
		reply string
		err   error
	)
	switch name {
	case "auction-next":
		reply, err = h.onBlock(h.auction.StartNext(ctx))
	case "auction-start":
		reply, err = h.handleStart(ctx, args.str("player"))
	case "bid":
		reply, err = h.handleBid(ctx, args.str("team"), args.integer("amount")*rules.Lakh)
	case "sell":
		reply, err = h.handleSell(ctx)
	case "pass":
		reply, err = h.handlePass(ctx)
	case "next":
		if _, err = h.auction.NextPlayer(ctx); err == nil {
			reply = "Block cleared. Ready for the next player."
		}
	case "status":
		reply = formatStatus(h.auction.Snapshot())
	case "squad":
		reply, err = h.handleSquad(args.str("team"))
	default:
		return "Unknown command"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return failure(err)
	}
	return reply
}

func (h *Handlers) handleStart(ctx context.Context, ref string) (string, error) {
	p, ok := findPlayer(h.auction.Snapshot(), ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", auction.ErrUnknownPlayer, ref)
	}
	return h.onBlock(h.auction.StartAuctionForPlayer(ctx, p.ID))
}

func (h *Handlers) onBlock(s auction.State, err error) (string, error) {
	if err != nil {
		return "", err
	}
	p, _ := s.CurrentPlayer()
	return fmt.Sprintf("On the block: **%s** (%s, %s). Base price %s.",
		p.Name, p.Category, p.Country, rules.FormatMoney(p.BasePrice)), nil
}

func (h *Handlers) handleBid(ctx context.Context, ref string, amount int64) (string, error) {
	team, ok := findTeam(h.auction.Snapshot(), ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", auction.ErrUnknownTeam, ref)
	}
	s, err := h.auction.PlaceBid(ctx, team.ID, amount)
	if err != nil {
		return "", err
	}
	p, _ := s.CurrentPlayer()
	return fmt.Sprintf("**%s** bids %s for **%s**. Next bid %s.",
		team.Name, rules.FormatMoney(s.CurrentBid), p.Name, rules.FormatMoney(s.MinimumBid())), nil
}

func (h *Handlers) handleSell(ctx context.Context) (string, error) {
	s, err := h.auction.SellPlayer(ctx)
	if err != nil {
		return "", err
	}
	if len(s.History) == 0 {
		return "", fmt.Errorf("sale not recorded")
	}
	sale := s.History[len(s.History)-1]
	p, _ := s.Player(sale.PlayerID)
	team, _ := s.Team(sale.TeamID)
	return fmt.Sprintf("SOLD! **%s** to **%s** for %s. Purse left %s.",
		p.Name, team.Name, rules.FormatMoney(sale.Amount), rules.FormatMoney(team.Budget)), nil
}

func (h *Handlers) handlePass(ctx context.Context) (string, error) {
	before := h.auction.Snapshot()
	if _, err := h.auction.PassPlayer(ctx); err != nil {
		return "", err
	}
	p, _ := before.CurrentPlayer()
	return fmt.Sprintf("**%s** goes unsold.", p.Name), nil
}

func (h *Handlers) handleSquad(ref string) (string, error) {
	team, ok := findTeam(h.auction.Snapshot(), ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", auction.ErrUnknownTeam, ref)
	}
	report, err := h.auction.SquadReport(team.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%d players, %d overseas). Purse %s.\n",
		team.Name, report.Counts.Total, report.Counts.Overseas, rules.FormatMoney(team.Budget))
	for _, p := range team.Squad {
		fmt.Fprintf(&b, "- %s, %s, %s\n", p.Name, p.Category, rules.FormatMoney(p.SoldPrice))
	}
	if report.IsValid {
		b.WriteString("Squad requirements met.")
	} else {
		b.WriteString("Still needed: " + strings.Join(report.Issues, "; "))
	}
	return b.String(), nil
}

func formatStatus(s auction.State) string {
	var available int
	for _, p := range s.Players {
		if p.Status == roster.Available {
			available++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: **%s**. %d of %d players available.", s.Status, available, len(s.Players))
	if p, ok := s.CurrentPlayer(); ok {
		fmt.Fprintf(&b, "\nOn the block: **%s** at %s", p.Name, rules.FormatMoney(s.CurrentBid))
		if t, ok := s.Team(s.CurrentBidder); ok {
			fmt.Fprintf(&b, " (%s)", t.Name)
		} else {
			b.WriteString(" (no bids)")
		}
	}
	return b.String()
}

func failure(err error) string {
	var rejected *auction.BidRejectedError
	switch {
	case errors.As(err, &rejected):
		return "Bid rejected: " + rejected.Verdict.Message()
	case errors.Is(err, auction.ErrIllegalTransition):
		return "Not now: " + err.Error()
	case errors.Is(err, auction.ErrNotOwner):
		return "Not now: the auction is starting up, try again shortly"
	}
	return "Failed: " + err.Error()
}

func findTeam(s auction.State, ref string) (roster.Team, bool) {
	for _, t := range s.Teams {
		if strings.EqualFold(t.ID, ref) || strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return roster.Team{}, false
}

func findPlayer(s auction.State, ref string) (roster.Player, bool) {
	if p, ok := s.Player(ref); ok {
		return p, true
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, ref) {
			return p, true
		}
	}
	return roster.Player{}, false
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
