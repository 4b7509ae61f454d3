// Package api serves the auction over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/auth"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/health"
	"github.com/jensholdgaard/cricket-auction/internal/ingest"
)

// Options wires the router to its collaborators.
type Options struct {
	Auction   *auction.Manager
	Auth      *auth.Authenticator
	Health    *health.Handler
	Dashboard http.Handler
	// Picker draws ratings for uploaded sheets.
	Picker ingest.Picker
	HTTP   config.HTTPConfig
	Logger *slog.Logger
}

type handler struct {
	auction *auction.Manager
	auth    *auth.Authenticator
	picker  ingest.Picker
	logger  *slog.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(opts Options) (*chi.Mux, error) {
	limiter, err := newIPLimiter(opts.HTTP.RateLimit, opts.HTTP.RateBurst, opts.HTTP.LimiterCacheSize)
	if err != nil {
		return nil, err
	}
	h := &handler{
		auction: opts.Auction,
		auth:    opts.Auth,
		picker:  opts.Picker,
		logger:  opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}).Handler)

	opts.Health.Mount(r)
	if opts.Dashboard != nil {
		r.Handle("/ws", opts.Dashboard)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Post("/auth/login", h.login)

		r.Route("/auction", func(r chi.Router) {
			r.Post("/start", h.start)
			r.With(limiter.middleware).Post("/bid", h.bid)
			r.With(limiter.middleware).Post("/sell", h.transition(h.auction.SellPlayer))
			r.Post("/pass", h.transition(h.auction.PassPlayer))
			r.Post("/next", h.transition(h.auction.NextPlayer))
		})

		r.Post("/players", h.loadPlayers)
		r.Post("/select-team", h.selectTeam)
		r.Get("/teams/{id}/report", h.squadReport)
		r.Get("/events", h.events)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(opts.Auth))
			r.Post("/status", h.setStatus)
			r.Post("/reset", h.transition(h.auction.FullReset))
			r.Post("/reoffer", h.transition(h.auction.ReofferUnsold))
		})
	})

	return r, nil
}
