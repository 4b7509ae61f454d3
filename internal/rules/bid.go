// Package rules holds the pure bid and squad rules of the auction.
package rules

import (
	"errors"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
)

// Squad limits.
const (
	MaxSquadSize = 15
	MinSquadSize = 12
	MaxOverseas  = 5
)

// Errors returned by Verdict.Err.
var (
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrSquadFull          = errors.New("squad is full")
	ErrOverseasCap        = errors.New("overseas limit reached")
)

// Reason identifies why a bid was refused.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInsufficientBudget Reason = "INSUFFICIENT_BUDGET"
	ReasonSquadFull          Reason = "SQUAD_FULL"
	ReasonOverseasCap        Reason = "OVERSEAS_CAP"
)

// Verdict is the structured result of a bid check.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

// Err returns the sentinel error for an invalid verdict, or nil.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	switch v.Reason {
	case ReasonInsufficientBudget:
		return ErrInsufficientBudget
	case ReasonSquadFull:
		return ErrSquadFull
	case ReasonOverseasCap:
		return ErrOverseasCap
	}
	return errors.New("bid refused")
}

// Message is a human readable form of the reason.
func (v Verdict) Message() string {
	switch v.Reason {
	case ReasonInsufficientBudget:
		return "Insufficient budget!"
	case ReasonSquadFull:
		return "Squad is full (Max 15)!"
	case ReasonOverseasCap:
		return "Overseas quota is full (Max 5)!"
	}
	return ""
}

var ok = Verdict{Valid: true}

// NextBidAmount returns the minimum raise over current.
func NextBidAmount(current int64) int64 {
	switch {
	case current < 10_000_000:
		return current + 1_000_000
	case current < 50_000_000:
		return current + 2_000_000
	case current < 100_000_000:
		return current + 2_500_000
	default:
		return current + 5_000_000
	}
}

// ValidateBid checks amount against the team's purse and squad size.
func ValidateBid(team roster.Team, amount int64) Verdict {
	if team.Budget < amount {
		return Verdict{Reason: ReasonInsufficientBudget}
	}
	if len(team.Squad) >= MaxSquadSize {
		return Verdict{Reason: ReasonSquadFull}
	}
	return ok
}

// ValidateSigning checks that adding p keeps the team within the overseas cap.
func ValidateSigning(team roster.Team, p roster.Player) Verdict {
	if p.IsOverseas() && team.OverseasCount() >= MaxOverseas {
		return Verdict{Reason: ReasonOverseasCap}
	}
	return ok
}
