package auction

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/store"
)

// Options configures an Engine.
type Options struct {
	// Teams is the starting roster, restored by FullReset.
	Teams []roster.Team
	// Seed is the default player pool, restored by FullReset.
	Seed []roster.Player
	// SessionID tags emitted events. Generated when empty.
	SessionID string
	Clock     clock.Clock
	Picker    Picker
}

// Engine owns the auction state and serialises every transition.
// Commands apply to a private copy that is swapped in only on success, so
// readers never see a half-applied transition.
// It is safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	state State

	teams   []roster.Team
	seed    []roster.Player
	clock   clock.Clock
	picker  Picker
	session string
	version int
	events  []event.Event
}

// NewEngine returns an idle engine holding the starting teams and seed pool.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Picker == nil {
		opts.Picker = NewPicker(0)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	e := &Engine{
		teams:   roster.CloneTeams(opts.Teams),
		seed:    roster.ClonePlayers(opts.Seed),
		clock:   opts.Clock,
		picker:  opts.Picker,
		session: opts.SessionID,
	}
	e.state = State{
		Teams:   roster.CloneTeams(opts.Teams),
		Players: freshPool(opts.Seed),
		Status:  StatusIdle,
		History: []HistoryEntry{},
	}
	return e
}

// SessionID is the aggregate id stamped on emitted events.
func (e *Engine) SessionID() string { return e.session }

// Restore replaces the state wholesale with persisted documents. Empty
// teams or players fall back to the starting roster and seed pool. Events
// not yet drained describe the replaced state and are discarded.
func (e *Engine) Restore(snap store.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	teams := snap.Teams
	if len(teams) == 0 {
		teams = e.teams
	}
	players := snap.Players
	if len(players) == 0 {
		players = freshPool(e.seed)
	}
	status := StatusIdle
	if snap.Settings.Status == string(ModePaused) {
		status = StatusPaused
	}
	e.state = State{
		Teams:    roster.CloneTeams(teams),
		Players:  roster.ClonePlayers(players),
		Status:   status,
		History:  []HistoryEntry{},
		MyTeamID: snap.Settings.MyTeamID,
		Revision: e.state.Revision + 1,
	}
	e.events = nil
}

// Dispatch applies cmd and returns the resulting state. On error the
// state is unchanged and the current state is returned.
func (e *Engine) Dispatch(cmd Command) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.state.Clone()
	tx := &txn{
		s:      &work,
		now:    e.clock.Now().UTC(),
		seed:   e.seed,
		teams:  e.teams,
		picker: e.picker,
	}
	if err := cmd.apply(tx); err != nil {
		return e.state.Clone(), err
	}

	work.Revision++
	e.state = work
	for _, pe := range tx.events {
		e.version++
		e.events = append(e.events, event.Event{
			ID:          uuid.NewString(),
			AggregateID: e.session,
			Type:        pe.typ,
			Data:        pe.data,
			Version:     e.version,
			CreatedAt:   tx.now,
		})
	}
	return e.state.Clone(), nil
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Draw picks a random available player without starting them.
func (e *Engine) Draw() (roster.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := draw(&e.state, e.picker)
	if err != nil {
		return roster.Player{}, err
	}
	p, _ := e.state.Player(id)
	return p, nil
}

// Document returns the persisted form of the current state.
func (e *Engine) Document() store.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return documentOf(e.state)
}

// PendingEvents returns uncommitted events and clears the buffer.
func (e *Engine) PendingEvents() []event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.events
	e.events = nil
	return events
}

// RequeueEvents puts events that failed to persist back at the head of
// the buffer.
func (e *Engine) RequeueEvents(events []event.Event) {
	if len(events) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(append([]event.Event{}, events...), e.events...)
}

// InitialTeams returns the starting roster.
func (e *Engine) InitialTeams() []roster.Team { return roster.CloneTeams(e.teams) }

// SeedPlayers returns the default pool, every player Available.
func (e *Engine) SeedPlayers() []roster.Player { return freshPool(e.seed) }

func documentOf(s State) store.Snapshot {
	mode := ModeLive
	if s.Status == StatusPaused {
		mode = ModePaused
	}
	return store.Snapshot{
		Settings: store.Settings{Status: string(mode), MyTeamID: s.MyTeamID},
		Teams:    roster.CloneTeams(s.Teams),
		Players:  roster.ClonePlayers(s.Players),
	}
}

func freshPool(players []roster.Player) []roster.Player {
	out := make([]roster.Player, len(players))
	for i, p := range players {
		out[i] = p.Fresh()
	}
	return out
}
