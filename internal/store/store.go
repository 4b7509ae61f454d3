package store

import (
	"context"
	"errors"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
)

// ErrNotFound is returned when a store holds no saved auction.
var ErrNotFound = errors.New("not found")

// Setting names a key in the settings document.
type Setting string

const (
	SettingStatus   Setting = "status"
	SettingMyTeamID Setting = "my_team_id"
)

// Settings are the small values written outside the bulk snapshot.
type Settings struct {
	Status   string `json:"status"`
	MyTeamID string `json:"myTeamId,omitempty"`
}

// Set assigns the value for key. Unknown keys are ignored.
func (s *Settings) Set(key Setting, value string) {
	switch key {
	case SettingStatus:
		s.Status = value
	case SettingMyTeamID:
		s.MyTeamID = value
	}
}

// Snapshot is the persisted form of an auction.
type Snapshot struct {
	Settings Settings        `json:"settings"`
	Teams    []roster.Team   `json:"teams"`
	Players  []roster.Player `json:"players"`
}

// Gateway persists auction documents. The in-memory engine is the
// authority; the gateway is a mirror of it.
type Gateway interface {
	// LoadSnapshot returns the saved auction or ErrNotFound.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	// SaveSnapshot overwrites every team and player document.
	SaveSnapshot(ctx context.Context, teams []roster.Team, players []roster.Player) error
	// UpdateSetting writes a single setting.
	UpdateSetting(ctx context.Context, key Setting, value string) error
	// Reset restores the given default teams and players, pauses the
	// auction and clears the viewer's team.
	Reset(ctx context.Context, teams []roster.Team, players []roster.Player) error
}
