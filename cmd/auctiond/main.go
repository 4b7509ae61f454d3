package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/cricket-auction/internal/api"
	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/auth"
	"github.com/jensholdgaard/cricket-auction/internal/bot"
	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/dashboard"
	"github.com/jensholdgaard/cricket-auction/internal/health"
	"github.com/jensholdgaard/cricket-auction/internal/ingest"
	"github.com/jensholdgaard/cricket-auction/internal/leader"
	"github.com/jensholdgaard/cricket-auction/internal/mirror"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/store"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/cricket-auction/internal/store/bolt"
	_ "github.com/jensholdgaard/cricket-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/cricket-auction/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (AUCTION_* variables override it)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	metrics, err := telemetry.NewMetrics(tp.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	seed, issues, err := ingest.LoadSeedFile(cfg.Auction.SeedFile)
	if err != nil {
		return fmt.Errorf("loading seed pool: %w", err)
	}
	for _, issue := range issues {
		logger.WarnContext(ctx, "seed row defaulted", slog.String("issue", issue.String()))
	}
	logger.InfoContext(ctx, "seed pool loaded", slog.Int("players", len(seed)))

	engine := auction.NewEngine(auction.Options{
		Teams:  roster.NewTeams(roster.Franchises, cfg.Auction.Purse),
		Seed:   seed,
		Clock:  clk,
		Picker: auction.NewPicker(cfg.Auction.RandSeed),
	})
	mirr := mirror.New(engine, repos.Gateway, repos.Events, cfg.Auction.SyncInterval, metrics, logger, tp.TracerProvider)
	auctionMgr := auction.NewManager(engine, repos.Gateway, repos.Events, mirr, metrics, logger, tp.TracerProvider)

	hub := dashboard.NewHub(auctionMgr, cfg.HTTP.CORSOrigins, logger)
	auctionMgr.Subscribe(hub)

	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)

	router, err := api.NewRouter(api.Options{
		Auction:   auctionMgr,
		Auth:      auth.New(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, clk),
		Health:    healthHandler,
		Dashboard: hub,
		Picker:    auction.NewPicker(0),
		HTTP:      cfg.HTTP,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// serve owns the auction: it restores the saved state, keeps the
	// mirror running and flushes it on the way out.
	serve := func(ctx context.Context) error {
		if err := auctionMgr.Recover(ctx); err != nil {
			return fmt.Errorf("recovering auction: %w", err)
		}
		defer auctionMgr.Release()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return mirr.Run(gctx) })

		if cfg.Discord.Token != "" {
			discordBot, err := bot.New(cfg.Discord, auctionMgr, logger, tp.TracerProvider)
			if err != nil {
				return fmt.Errorf("creating bot: %w", err)
			}
			g.Go(func() error { return discordBot.Run(gctx) })
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auction is live", slog.String("version", version), slog.String("session", engine.SessionID()))

		err := g.Wait()
		// Stop taking commands before the final flush.
		auctionMgr.Release()
		healthHandler.SetReady(false)

		flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer flushCancel()
		if flushErr := mirr.Flush(flushCtx); flushErr != nil {
			logger.Error("final mirror flush failed", slog.Any("error", flushErr))
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(gctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return hub.Run(gctx) })

	g.Go(func() error {
		if !cfg.LeaderElection.Enabled {
			return serve(gctx)
		}
		logger.InfoContext(gctx, "leader election enabled, waiting for the auction lease...")
		elector, err := leader.New(cfg.LeaderElection, logger)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		var serveErr error
		err = elector.Run(gctx, leader.Callbacks{
			OnStartedLeading: func(ctx context.Context) {
				serveErr = serve(ctx)
			},
			OnStoppedLeading: func() {
				logger.Info("lost the auction lease, shutting down...")
				cancel()
			},
		})
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		return serveErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
