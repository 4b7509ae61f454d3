package auction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
)

// Command is a single transition request for the engine.
type Command interface {
	// Name identifies the command in logs and errors.
	Name() string
	apply(tx *txn) error
}

// txn is a working copy of the state plus the events the command records.
// Nothing is visible to readers until the engine commits it.
type txn struct {
	s      *State
	now    time.Time
	seed   []roster.Player
	teams  []roster.Team
	picker Picker
	events []pendingEvent
}

type pendingEvent struct {
	typ  event.Type
	data json.RawMessage
}

func (tx *txn) record(t event.Type, v any) {
	data, _ := json.Marshal(v)
	tx.events = append(tx.events, pendingEvent{typ: t, data: data})
}

// StartPlayer puts a player on the block at their base price.
type StartPlayer struct {
	PlayerID string
}

func (StartPlayer) Name() string { return "start_player" }

func (c StartPlayer) apply(tx *txn) error {
	s := tx.s
	if s.Status != StatusIdle {
		return illegal(c, s.Status)
	}
	i := s.playerIndex(c.PlayerID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, c.PlayerID)
	}
	p := s.Players[i]
	if p.Status != roster.Available {
		return fmt.Errorf("%w: %s is %s", ErrPlayerUnavailable, p.ID, p.Status)
	}
	s.CurrentPlayerID = p.ID
	s.CurrentBid = p.BasePrice
	s.CurrentBidder = ""
	s.Status = StatusBidding
	tx.record(event.PlayerStarted, event.PlayerStartedData{PlayerID: p.ID, BasePrice: p.BasePrice})
	return nil
}

// StartNext draws a random available player and starts them.
type StartNext struct{}

func (StartNext) Name() string { return "start_next" }

func (c StartNext) apply(tx *txn) error {
	if tx.s.Status != StatusIdle {
		return illegal(c, tx.s.Status)
	}
	id, err := draw(tx.s, tx.picker)
	if err != nil {
		return err
	}
	return StartPlayer{PlayerID: id}.apply(tx)
}

// PlaceBid raises the current bid. An Amount of zero bids the minimum:
// the base price for the opening bid, the next increment after that.
type PlaceBid struct {
	TeamID string
	Amount int64
}

func (PlaceBid) Name() string { return "place_bid" }

func (c PlaceBid) apply(tx *txn) error {
	s := tx.s
	if s.Status != StatusBidding {
		return illegal(c, s.Status)
	}
	ti := s.teamIndex(c.TeamID)
	if ti < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, c.TeamID)
	}
	if c.TeamID == s.CurrentBidder {
		return ErrSelfOutbid
	}

	minimum := s.MinimumBid()
	amount := c.Amount
	if amount == 0 {
		amount = minimum
	}
	if amount < minimum {
		return fmt.Errorf("%w: %s is below %s", ErrBidTooLow, rules.FormatMoney(amount), rules.FormatMoney(minimum))
	}

	team := s.Teams[ti]
	if v := rules.ValidateBid(team, amount); !v.Valid {
		return &BidRejectedError{TeamID: team.ID, Amount: amount, Verdict: v}
	}
	player, _ := s.CurrentPlayer()
	if v := rules.ValidateSigning(team, player); !v.Valid {
		return &BidRejectedError{TeamID: team.ID, Amount: amount, Verdict: v}
	}

	s.CurrentBid = amount
	s.CurrentBidder = team.ID
	tx.record(event.BidPlaced, event.BidPlacedData{PlayerID: player.ID, TeamID: team.ID, Amount: amount})
	return nil
}

// SellPlayer awards the player on the block to the highest bidder.
type SellPlayer struct{}

func (SellPlayer) Name() string { return "sell_player" }

func (c SellPlayer) apply(tx *txn) error {
	s := tx.s
	if s.Status != StatusBidding {
		return illegal(c, s.Status)
	}
	if s.CurrentBidder == "" {
		return ErrNoBidder
	}
	ti := s.teamIndex(s.CurrentBidder)
	pi := s.playerIndex(s.CurrentPlayerID)
	if ti < 0 || pi < 0 {
		return fmt.Errorf("%w: dangling bidder or player", ErrIllegalTransition)
	}

	team := &s.Teams[ti]
	if v := rules.ValidateBid(*team, s.CurrentBid); !v.Valid {
		return &BidRejectedError{TeamID: team.ID, Amount: s.CurrentBid, Verdict: v}
	}

	sold := s.Players[pi]
	sold.Status = roster.Sold
	sold.SoldTo = team.ID
	sold.SoldPrice = s.CurrentBid
	s.Players[pi] = sold

	team.Budget -= s.CurrentBid
	team.Squad = append(team.Squad, sold)

	s.History = append(s.History, HistoryEntry{
		Kind:      HistorySold,
		PlayerID:  sold.ID,
		TeamID:    team.ID,
		Amount:    s.CurrentBid,
		Timestamp: tx.now,
	})
	s.Status = StatusSold
	tx.record(event.PlayerSold, event.PlayerSoldData{PlayerID: sold.ID, TeamID: team.ID, Amount: s.CurrentBid})
	return nil
}

// PassPlayer marks the player on the block unsold.
type PassPlayer struct{}

func (PassPlayer) Name() string { return "pass_player" }

func (c PassPlayer) apply(tx *txn) error {
	s := tx.s
	if s.Status != StatusBidding {
		return illegal(c, s.Status)
	}
	pi := s.playerIndex(s.CurrentPlayerID)
	if pi < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, s.CurrentPlayerID)
	}
	s.Players[pi].Status = roster.Unsold
	s.History = append(s.History, HistoryEntry{
		Kind:      HistoryUnsold,
		PlayerID:  s.CurrentPlayerID,
		Timestamp: tx.now,
	})
	s.Status = StatusUnsold
	tx.record(event.PlayerUnsold, event.PlayerUnsoldData{PlayerID: s.CurrentPlayerID})
	return nil
}

// NextPlayer clears the block after a sale or pass.
type NextPlayer struct{}

func (NextPlayer) Name() string { return "next_player" }

func (c NextPlayer) apply(tx *txn) error {
	s := tx.s
	if s.Status != StatusSold && s.Status != StatusUnsold {
		return illegal(c, s.Status)
	}
	s.CurrentPlayerID = ""
	s.CurrentBid = 0
	s.CurrentBidder = ""
	s.Status = StatusIdle
	tx.record(event.RoundReset, struct{}{})
	return nil
}

// LoadPlayers replaces the player pool. Every player starts Available.
type LoadPlayers struct {
	Players []roster.Player
}

func (LoadPlayers) Name() string { return "load_players" }

func (c LoadPlayers) apply(tx *txn) error {
	s := tx.s
	if s.Status == StatusBidding || (s.Status == StatusPaused && s.PausedFrom == StatusBidding) {
		return illegal(c, s.Status)
	}
	seen := make(map[string]struct{}, len(c.Players))
	pool := make([]roster.Player, 0, len(c.Players))
	for _, p := range c.Players {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("%w: id and name are required", ErrInvalidPlayer)
		}
		if !p.Category.Valid() {
			return fmt.Errorf("%w: %s has category %q", ErrInvalidPlayer, p.ID, p.Category)
		}
		if p.BasePrice <= 0 {
			return fmt.Errorf("%w: %s has base price %d", ErrInvalidPlayer, p.ID, p.BasePrice)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
		}
		seen[p.ID] = struct{}{}
		pool = append(pool, p.Fresh())
	}

	s.Players = pool
	s.CurrentPlayerID = ""
	s.CurrentBid = 0
	s.CurrentBidder = ""
	if s.Status == StatusPaused {
		s.PausedFrom = StatusIdle
	} else {
		s.Status = StatusIdle
	}
	tx.record(event.PlayersLoaded, event.PlayersLoadedData{Count: len(pool)})
	return nil
}

// ReofferUnsold returns every unsold player to the pool.
type ReofferUnsold struct{}

func (ReofferUnsold) Name() string { return "reoffer_unsold" }

func (c ReofferUnsold) apply(tx *txn) error {
	s := tx.s
	if s.Status != StatusIdle {
		return illegal(c, s.Status)
	}
	var ids []string
	for i := range s.Players {
		if s.Players[i].Status == roster.Unsold {
			s.Players[i].Status = roster.Available
			ids = append(ids, s.Players[i].ID)
		}
	}
	tx.record(event.PlayersReoffered, event.PlayersReofferedData{PlayerIDs: ids})
	return nil
}

// SelectMyTeam records which team the viewer follows. An empty id clears it.
type SelectMyTeam struct {
	TeamID string
}

func (SelectMyTeam) Name() string { return "select_my_team" }

func (c SelectMyTeam) apply(tx *txn) error {
	if c.TeamID != "" && tx.s.teamIndex(c.TeamID) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, c.TeamID)
	}
	tx.s.MyTeamID = c.TeamID
	tx.record(event.TeamSelected, event.TeamSelectedData{TeamID: c.TeamID})
	return nil
}

// SetStatus pauses or resumes the auction. Pausing keeps the block intact
// and resuming returns to the status held before the pause. Going live
// from a closed round clears the block.
type SetStatus struct {
	Mode Mode
}

func (SetStatus) Name() string { return "set_status" }

func (c SetStatus) apply(tx *txn) error {
	s := tx.s
	from := s.Status
	switch c.Mode {
	case ModePaused:
		if s.Status == StatusPaused {
			return nil
		}
		s.PausedFrom = s.Status
		s.Status = StatusPaused
	case ModeLive:
		switch s.Status {
		case StatusSold, StatusUnsold:
			s.CurrentPlayerID = ""
			s.CurrentBid = 0
			s.CurrentBidder = ""
			s.Status = StatusIdle
			tx.record(event.StatusChanged, event.StatusChangedData{From: string(from), To: string(s.Status)})
			return nil
		case StatusPaused:
		default:
			// Idle or bidding: already live, the open bid stays.
			return nil
		}
		s.Status = s.PausedFrom
		if s.Status == "" {
			s.Status = StatusIdle
		}
		s.PausedFrom = ""
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrIllegalTransition, c.Mode)
	}
	tx.record(event.StatusChanged, event.StatusChangedData{From: string(from), To: string(s.Status)})
	return nil
}

// FullReset restores every team and the seed pool, clears the history and
// leaves the auction paused.
type FullReset struct{}

func (FullReset) Name() string { return "full_reset" }

func (FullReset) apply(tx *txn) error {
	s := tx.s
	s.Teams = roster.CloneTeams(tx.teams)
	s.Players = make([]roster.Player, len(tx.seed))
	for i, p := range tx.seed {
		s.Players[i] = p.Fresh()
	}
	s.CurrentPlayerID = ""
	s.CurrentBid = 0
	s.CurrentBidder = ""
	s.Status = StatusPaused
	s.PausedFrom = ""
	s.History = []HistoryEntry{}
	s.MyTeamID = ""
	tx.record(event.AuctionReset, struct{}{})
	return nil
}
