// Package auction implements the live auction state machine and the
// manager that exposes it to transports.
package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
)

// Status is the state of the auction floor.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusBidding Status = "BIDDING"
	StatusSold    Status = "SOLD"
	StatusUnsold  Status = "UNSOLD"
	StatusPaused  Status = "PAUSED"
)

// Mode is the admin run switch.
type Mode string

const (
	ModeLive   Mode = "LIVE"
	ModePaused Mode = "PAUSED"
)

// Errors returned by Dispatch.
var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrNoBidder          = fmt.Errorf("%w: no bid has been placed", ErrIllegalTransition)
	ErrSelfOutbid        = errors.New("team is already the highest bidder")
	ErrBidTooLow         = errors.New("bid is below minimum")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrUnknownTeam       = errors.New("unknown team")
	ErrPlayerUnavailable = errors.New("player is not available")
	ErrPoolExhausted     = errors.New("no players left to auction")
	ErrDuplicatePlayer   = errors.New("duplicate player id")
	ErrInvalidPlayer     = errors.New("invalid player")
	// ErrNotOwner is returned by the Manager until Recover has loaded the
	// saved auction, and again after Release.
	ErrNotOwner = errors.New("auction is not owned by this replica")
)

// BidRejectedError is returned when a bid fails the budget, squad or
// overseas checks. It carries the structured verdict.
type BidRejectedError struct {
	TeamID  string
	Amount  int64
	Verdict rules.Verdict
}

func (e *BidRejectedError) Error() string {
	return fmt.Sprintf("bid of %d by %s rejected: %s", e.Amount, e.TeamID, e.Verdict.Err())
}

func (e *BidRejectedError) Unwrap() error { return e.Verdict.Err() }

// HistoryKind distinguishes entries in the sale log.
type HistoryKind string

const (
	HistorySold   HistoryKind = "SOLD"
	HistoryUnsold HistoryKind = "UNSOLD"
)

// HistoryEntry is one sale or pass.
type HistoryEntry struct {
	Kind      HistoryKind `json:"type"`
	PlayerID  string      `json:"playerId"`
	TeamID    string      `json:"teamId,omitempty"`
	Amount    int64       `json:"amount,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// State is the whole auction as seen by readers.
type State struct {
	Teams           []roster.Team   `json:"teams"`
	Players         []roster.Player `json:"players"`
	CurrentPlayerID string          `json:"currentPlayerId,omitempty"`
	CurrentBid      int64           `json:"currentBid"`
	CurrentBidder   string          `json:"currentBidder,omitempty"`
	Status          Status          `json:"auctionStatus"`
	PausedFrom      Status          `json:"pausedFrom,omitempty"`
	History         []HistoryEntry  `json:"history"`
	MyTeamID        string          `json:"myTeamId,omitempty"`
	Revision        int64           `json:"revision"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Teams = roster.CloneTeams(s.Teams)
	s.Players = roster.ClonePlayers(s.Players)
	history := make([]HistoryEntry, len(s.History))
	copy(history, s.History)
	s.History = history
	return s
}

// Team returns the team with the given id.
func (s State) Team(id string) (roster.Team, bool) {
	if i := s.teamIndex(id); i >= 0 {
		return s.Teams[i], true
	}
	return roster.Team{}, false
}

// Player returns the player with the given id.
func (s State) Player(id string) (roster.Player, bool) {
	if i := s.playerIndex(id); i >= 0 {
		return s.Players[i], true
	}
	return roster.Player{}, false
}

// CurrentPlayer returns the player on the block, if any.
func (s State) CurrentPlayer() (roster.Player, bool) {
	if s.CurrentPlayerID == "" {
		return roster.Player{}, false
	}
	return s.Player(s.CurrentPlayerID)
}

// MinimumBid is the smallest amount the next bid may carry.
func (s State) MinimumBid() int64 {
	if s.CurrentBidder == "" {
		return s.CurrentBid
	}
	return rules.NextBidAmount(s.CurrentBid)
}

// Eligible returns the ids of players that may be drawn next.
func (s State) Eligible() []string {
	var ids []string
	for _, p := range s.Players {
		if p.Status == roster.Available && p.ID != s.CurrentPlayerID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s State) teamIndex(id string) int {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) playerIndex(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

func illegal(cmd Command, st Status) error {
	return fmt.Errorf("%w: %s while %s", ErrIllegalTransition, cmd.Name(), st)
}
