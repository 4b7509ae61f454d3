package rules

import (
	"fmt"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
)

// MinRoles is the minimum number of players per category.
var MinRoles = map[roster.Category]int{
	roster.Batsman:      4,
	roster.Bowler:       3,
	roster.AllRounder:   1,
	roster.WicketKeeper: 1,
}

// SquadCounts tallies a squad.
type SquadCounts struct {
	ByCategory map[roster.Category]int `json:"byCategory"`
	Total      int                     `json:"total"`
	Overseas   int                     `json:"overseas"`
}

// SquadReport is the advisory result of CheckSquadRequirements.
type SquadReport struct {
	IsValid bool        `json:"isValid"`
	Issues  []string    `json:"issues"`
	Counts  SquadCounts `json:"counts"`
}

var roleIssue = map[roster.Category]string{
	roster.Batsman:      "Need %d Batsmen",
	roster.Bowler:       "Need %d Bowlers",
	roster.AllRounder:   "Need %d All-Rounder",
	roster.WicketKeeper: "Need %d Wicket-Keeper",
}

// CheckSquadRequirements reports every composition rule the squad breaks.
// It never gates a sale.
func CheckSquadRequirements(squad []roster.Player) SquadReport {
	counts := SquadCounts{
		ByCategory: make(map[roster.Category]int, len(roster.Categories)),
		Total:      len(squad),
	}
	for _, c := range roster.Categories {
		counts.ByCategory[c] = 0
	}
	for _, p := range squad {
		if _, known := counts.ByCategory[p.Category]; known {
			counts.ByCategory[p.Category]++
		}
		if p.IsOverseas() {
			counts.Overseas++
		}
	}

	issues := []string{}
	if counts.Total < MinSquadSize {
		issues = append(issues, fmt.Sprintf("Need at least %d players", MinSquadSize))
	}
	for _, c := range roster.Categories {
		if counts.ByCategory[c] < MinRoles[c] {
			issues = append(issues, fmt.Sprintf(roleIssue[c], MinRoles[c]))
		}
	}
	if counts.Overseas > MaxOverseas {
		issues = append(issues, fmt.Sprintf("Max %d Overseas players allowed", MaxOverseas))
	}

	return SquadReport{
		IsValid: len(issues) == 0,
		Issues:  issues,
		Counts:  counts,
	}
}
