package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
	"github.com/jensholdgaard/cricket-auction/internal/store"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"
)

// Notifier is told after every committed transition. The store mirror
// implements it.
type Notifier interface {
	Notify()
}

// Publisher receives the state after every committed transition.
type Publisher interface {
	Publish(ctx context.Context, s State)
}

type nopNotifier struct{}

func (nopNotifier) Notify() {}

// Manager is the dispatch surface used by every transport. It traces,
// logs and counts each command and fans committed state out to the
// mirror and publishers.
type Manager struct {
	engine   *Engine
	gateway  store.Gateway
	events   event.Store
	notifier Notifier
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	mu         sync.RWMutex
	publishers []Publisher

	owned atomic.Bool
}

// NewManager creates a new auction Manager. A nil notifier is allowed.
func NewManager(engine *Engine, gateway store.Gateway, events event.Store, notifier Notifier, metrics *telemetry.Metrics, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Manager{
		engine:   engine,
		gateway:  gateway,
		events:   events,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/cricket-auction/internal/auction"),
	}
}

// Subscribe adds a publisher for committed state.
func (m *Manager) Subscribe(p Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers = append(m.publishers, p)
}

// Recover loads the saved auction and takes ownership of it; commands are
// refused with ErrNotOwner until it succeeds. With nothing saved the
// engine keeps its defaults and they are written out on the next flush.
func (m *Manager) Recover(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Recover")
	defer span.End()

	log := telemetry.LogWithTrace(ctx, m.logger)
	snap, err := m.gateway.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.InfoContext(ctx, "no saved auction, starting from defaults")
		m.updateSetting(ctx, store.SettingStatus, string(ModeLive))
		m.notifier.Notify()
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("loading snapshot: %w", err)
	default:
		m.engine.Restore(*snap)
		log.InfoContext(ctx, "auction restored",
			slog.Int("teams", len(snap.Teams)),
			slog.Int("players", len(snap.Players)),
			slog.String("status", snap.Settings.Status),
		)
	}
	m.owned.Store(true)
	m.publish(ctx, m.engine.Snapshot())
	return nil
}

// Release gives up ownership. Later commands fail with ErrNotOwner.
func (m *Manager) Release() { m.owned.Store(false) }

// Owned reports whether Recover has run and Release has not.
func (m *Manager) Owned() bool { return m.owned.Load() }

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() State { return m.engine.Snapshot() }

// StartAuctionForPlayer puts the given player on the block.
func (m *Manager) StartAuctionForPlayer(ctx context.Context, playerID string) (State, error) {
	return m.dispatch(ctx, StartPlayer{PlayerID: playerID}, attribute.String("player.id", playerID))
}

// StartNext draws a random available player and puts them on the block.
func (m *Manager) StartNext(ctx context.Context) (State, error) {
	return m.dispatch(ctx, StartNext{})
}

// PlaceBid bids amount for teamID. Zero bids the minimum.
func (m *Manager) PlaceBid(ctx context.Context, teamID string, amount int64) (State, error) {
	s, err := m.dispatch(ctx, PlaceBid{TeamID: teamID, Amount: amount},
		attribute.String("team.id", teamID),
		attribute.Int64("bid.amount", amount),
	)
	if err == nil {
		m.metrics.Bids.Add(ctx, 1, metric.WithAttributes(attribute.String("team.id", teamID)))
	}
	return s, err
}

// SellPlayer sells the player on the block to the highest bidder.
func (m *Manager) SellPlayer(ctx context.Context) (State, error) {
	s, err := m.dispatch(ctx, SellPlayer{})
	if err == nil && len(s.History) > 0 {
		sale := s.History[len(s.History)-1]
		attrs := metric.WithAttributes(attribute.String("team.id", sale.TeamID))
		m.metrics.Sales.Add(ctx, 1, attrs)
		m.metrics.SaleAmount.Record(ctx, sale.Amount, attrs)
		telemetry.LogWithTrace(ctx, m.logger).InfoContext(ctx, "player sold",
			slog.String("player_id", sale.PlayerID),
			slog.String("team_id", sale.TeamID),
			slog.String("amount", rules.FormatMoney(sale.Amount)),
		)
	}
	return s, err
}

// PassPlayer marks the player on the block unsold.
func (m *Manager) PassPlayer(ctx context.Context) (State, error) {
	return m.dispatch(ctx, PassPlayer{})
}

// NextPlayer clears the block after a sale or pass.
func (m *Manager) NextPlayer(ctx context.Context) (State, error) {
	return m.dispatch(ctx, NextPlayer{})
}

// LoadPlayers replaces the player pool.
func (m *Manager) LoadPlayers(ctx context.Context, players []roster.Player) (State, error) {
	return m.dispatch(ctx, LoadPlayers{Players: players}, attribute.Int("players.count", len(players)))
}

// SelectMyTeam records the viewer's team and persists the choice.
func (m *Manager) SelectMyTeam(ctx context.Context, teamID string) (State, error) {
	s, err := m.dispatch(ctx, SelectMyTeam{TeamID: teamID}, attribute.String("team.id", teamID))
	if err == nil {
		m.updateSetting(ctx, store.SettingMyTeamID, teamID)
	}
	return s, err
}

// SetStatus pauses or resumes the auction and persists the switch.
func (m *Manager) SetStatus(ctx context.Context, mode Mode) (State, error) {
	s, err := m.dispatch(ctx, SetStatus{Mode: mode}, attribute.String("mode", string(mode)))
	if err == nil {
		m.updateSetting(ctx, store.SettingStatus, string(mode))
	}
	return s, err
}

// FullReset restores the starting roster and pool and pauses the auction.
func (m *Manager) FullReset(ctx context.Context) (State, error) {
	s, err := m.dispatch(ctx, FullReset{})
	if err != nil {
		return s, err
	}
	if err := m.gateway.Reset(ctx, s.Teams, s.Players); err != nil {
		telemetry.LogWithTrace(ctx, m.logger).ErrorContext(ctx, "resetting store",
			slog.String("error", err.Error()),
		)
	}
	return s, nil
}

// ReofferUnsold returns every unsold player to the pool.
func (m *Manager) ReofferUnsold(ctx context.Context) (State, error) {
	return m.dispatch(ctx, ReofferUnsold{})
}

// SquadReport checks a team's squad against the composition rules.
func (m *Manager) SquadReport(teamID string) (rules.SquadReport, error) {
	team, ok := m.engine.Snapshot().Team(teamID)
	if !ok {
		return rules.SquadReport{}, fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	return rules.CheckSquadRequirements(team.Squad), nil
}

// Events returns the persisted audit log for this session, or every
// event of the given type across sessions.
func (m *Manager) Events(ctx context.Context, typ event.Type) ([]event.Event, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Events",
		trace.WithAttributes(attribute.String("event.type", string(typ))),
	)
	defer span.End()

	if typ == "" {
		return m.events.Load(ctx, m.engine.SessionID())
	}
	return m.events.LoadByType(ctx, typ)
}

func (m *Manager) dispatch(ctx context.Context, cmd Command, attrs ...attribute.KeyValue) (State, error) {
	ctx, span := m.tracer.Start(ctx, "Manager."+cmd.Name(), trace.WithAttributes(attrs...))
	defer span.End()

	log := telemetry.LogWithTrace(ctx, m.logger)
	if !m.owned.Load() {
		span.RecordError(ErrNotOwner)
		span.SetStatus(codes.Error, ErrNotOwner.Error())
		return m.engine.Snapshot(), fmt.Errorf("%s: %w", cmd.Name(), ErrNotOwner)
	}
	s, err := m.engine.Dispatch(cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.Rejections.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", cmd.Name()),
			attribute.String("reason", rejectionReason(err)),
		))
		log.InfoContext(ctx, "command rejected",
			slog.String("command", cmd.Name()),
			slog.String("error", err.Error()),
		)
		return s, err
	}

	log.DebugContext(ctx, "command applied",
		slog.String("command", cmd.Name()),
		slog.String("status", string(s.Status)),
		slog.Int64("revision", s.Revision),
	)
	m.notifier.Notify()
	m.publish(ctx, s)
	return s, nil
}

func (m *Manager) publish(ctx context.Context, s State) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.publishers {
		p.Publish(ctx, s)
	}
}

func (m *Manager) updateSetting(ctx context.Context, key store.Setting, value string) {
	if err := m.gateway.UpdateSetting(ctx, key, value); err != nil {
		telemetry.LogWithTrace(ctx, m.logger).ErrorContext(ctx, "persisting setting",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
	}
}

func rejectionReason(err error) string {
	var rejected *BidRejectedError
	switch {
	case errors.As(err, &rejected):
		return string(rejected.Verdict.Reason)
	case errors.Is(err, ErrIllegalTransition):
		return "ILLEGAL_TRANSITION"
	case errors.Is(err, ErrSelfOutbid):
		return "SELF_OUTBID"
	case errors.Is(err, ErrBidTooLow):
		return "BID_TOO_LOW"
	default:
		return "INVALID"
	}
}
