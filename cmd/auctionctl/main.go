// Command auctionctl administers the auction store offline.
//
// Usage:
//
//	auctionctl import --file players.csv
//	auctionctl import --file seed.csv --seed-format
//	auctionctl reset
//	auctionctl show
//	auctionctl hash-password < password.txt
//
// Commands that write to the store should run while auctiond is stopped;
// a running service overwrites the store on its next sync.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/auth"
	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/ingest"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
	"github.com/jensholdgaard/cricket-auction/internal/store"

	_ "github.com/jensholdgaard/cricket-auction/internal/store/bolt"
	_ "github.com/jensholdgaard/cricket-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/cricket-auction/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "auctionctl",
		Short:        "Cricket auction admin CLI",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	root.AddCommand(importCmd(&configPath))
	root.AddCommand(resetCmd(&configPath))
	root.AddCommand(showCmd(&configPath))
	root.AddCommand(hashPasswordCmd())
	return root
}

// env is what every store command works with.
type env struct {
	cfg    *config.Config
	repos  *store.Repositories
	logger *slog.Logger
	out    io.Writer
}

// withStore loads config, opens the configured store and runs fn.
func withStore(cmd *cobra.Command, configPath string, fn func(ctx context.Context, e env) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	repos, err := store.Open(ctx, cfg.Database, clock.Real{})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer repos.Closer.Close()

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
	return fn(ctx, env{cfg: cfg, repos: repos, logger: logger, out: cmd.OutOrStdout()})
}

// engineFor restores the saved auction into an engine, falling back to
// fresh teams and the configured seed pool.
func engineFor(ctx context.Context, e env) (*auction.Engine, error) {
	seed, _, err := ingest.LoadSeedFile(e.cfg.Auction.SeedFile)
	if err != nil {
		return nil, err
	}
	engine := auction.NewEngine(auction.Options{
		Teams: roster.NewTeams(roster.Franchises, e.cfg.Auction.Purse),
		Seed:  seed,
	})
	snap, err := e.repos.Gateway.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("loading snapshot: %w", err)
	default:
		engine.Restore(*snap)
	}
	return engine, nil
}

func importCmd(configPath *string) *cobra.Command {
	var (
		file       string
		seedFormat bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the player pool from a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, *configPath, func(ctx context.Context, e env) error {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("opening %s: %w", file, err)
				}
				defer f.Close()

				var (
					players []roster.Player
					issues  []ingest.RowIssue
				)
				if seedFormat {
					players, issues, err = ingest.ParseSeedCSV(f)
				} else {
					players, issues, err = ingest.ParseSheet(f, auction.NewPicker(0))
				}
				if err != nil {
					return fmt.Errorf("parsing %s: %w", file, err)
				}
				if len(players) == 0 {
					return fmt.Errorf("%s has no player rows", file)
				}
				for _, issue := range issues {
					e.logger.Warn("row defaulted", slog.String("issue", issue.String()))
				}

				engine, err := engineFor(ctx, e)
				if err != nil {
					return err
				}
				if _, err := engine.Dispatch(auction.LoadPlayers{Players: players}); err != nil {
					return fmt.Errorf("loading players: %w", err)
				}
				doc := engine.Document()
				if err := e.repos.Gateway.SaveSnapshot(ctx, doc.Teams, doc.Players); err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
				fmt.Fprintf(e.out, "imported %d players (%d rows defaulted)\n", len(players), len(issues))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file to import")
	cmd.Flags().BoolVar(&seedFormat, "seed-format", false, "file uses the seed column layout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func resetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default teams and the seed pool, paused",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, *configPath, func(ctx context.Context, e env) error {
				seed, _, err := ingest.LoadSeedFile(e.cfg.Auction.SeedFile)
				if err != nil {
					return err
				}
				teams := roster.NewTeams(roster.Franchises, e.cfg.Auction.Purse)
				pool := make([]roster.Player, len(seed))
				for i, p := range seed {
					pool[i] = p.Fresh()
				}
				if err := e.repos.Gateway.Reset(ctx, teams, pool); err != nil {
					return fmt.Errorf("resetting store: %w", err)
				}
				fmt.Fprintf(e.out, "reset %d teams and %d players\n", len(teams), len(pool))
				return nil
			})
		},
	}
}

func showCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved auction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, *configPath, func(ctx context.Context, e env) error {
				snap, err := e.repos.Gateway.LoadSnapshot(ctx)
				if errors.Is(err, store.ErrNotFound) {
					fmt.Fprintln(e.out, "no saved auction")
					return nil
				}
				if err != nil {
					return fmt.Errorf("loading snapshot: %w", err)
				}
				sold, err := e.repos.Events.LoadByType(ctx, event.PlayerSold)
				if err != nil {
					return fmt.Errorf("loading sales: %w", err)
				}
				return printSnapshot(e.out, snap, sold)
			})
		},
	}
}

func printSnapshot(out io.Writer, snap *store.Snapshot, sold []event.Event) error {
	status := snap.Settings.Status
	if status == "" {
		status = string(auction.ModeLive)
	}
	counts := map[roster.PlayerStatus]int{}
	for _, p := range snap.Players {
		counts[p.Status]++
	}
	fmt.Fprintf(out, "status: %s\nplayers: %d available, %d sold, %d unsold\n\n",
		status, counts[roster.Available], counts[roster.Sold], counts[roster.Unsold])

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tPURSE\tSQUAD\tOVERSEAS")
	for _, t := range snap.Teams {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", t.ID, rules.FormatMoney(t.Budget), len(t.Squad), t.OverseasCount())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(sold) == 0 {
		return nil
	}

	names := make(map[string]string, len(snap.Players))
	for _, p := range snap.Players {
		names[p.ID] = p.Name
	}
	fmt.Fprintf(out, "\nsales logged: %d\n", len(sold))
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPLAYER\tTEAM\tPRICE")
	for _, ev := range sold {
		sale, err := event.Decode[event.PlayerSoldData](ev)
		if err != nil {
			return err
		}
		name := names[sale.PlayerID]
		if name == "" {
			name = sale.PlayerID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.CreatedAt.Format("2006-01-02 15:04"), name, sale.TeamID, rules.FormatMoney(sale.Amount))
	}
	return tw.Flush()
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for admin.password_hash",
		Long:  "Hashes the argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
