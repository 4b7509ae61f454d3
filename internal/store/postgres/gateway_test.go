package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/store"
	"github.com/jensholdgaard/cricket-auction/internal/store/postgres"
)

func testDocuments() ([]roster.Team, []roster.Player) {
	teams := roster.NewTeams(roster.Franchises[:2], roster.DefaultPurse)
	players := []roster.Player{
		{ID: "p1", Name: "Virat Kohli", Category: roster.Batsman, Country: roster.India, BasePrice: 20_000_000, Rating: 85, Status: roster.Available},
		{ID: "p2", Name: "Jos Buttler", Category: roster.WicketKeeper, Country: roster.Overseas, BasePrice: 20_000_000, Rating: 85, Status: roster.Available},
	}
	return teams, players
}

func TestGateway_LoadEmpty(t *testing.T) {
	g := postgres.NewGateway(newTestDB(t))

	_, err := g.LoadSnapshot(context.Background())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("LoadSnapshot() error = %v, want ErrNotFound", err)
	}
}

func TestGateway_SaveAndLoad(t *testing.T) {
	g := postgres.NewGateway(newTestDB(t))
	ctx := context.Background()

	teams, players := testDocuments()
	teams[0].Budget -= 20_000_000
	sold := players[0]
	sold.Status = roster.Sold
	sold.SoldTo = teams[0].ID
	sold.SoldPrice = 20_000_000
	players[0] = sold
	teams[0].Squad = append(teams[0].Squad, sold)

	if err := g.SaveSnapshot(ctx, teams, players); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	// Saving twice is a full overwrite.
	if err := g.SaveSnapshot(ctx, teams, players); err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}
	if err := g.UpdateSetting(ctx, store.SettingMyTeamID, teams[0].ID); err != nil {
		t.Fatalf("UpdateSetting: %v", err)
	}

	snap, err := g.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Teams) != 2 || len(snap.Players) != 2 {
		t.Fatalf("got %d teams, %d players; want 2, 2", len(snap.Teams), len(snap.Players))
	}
	if snap.Teams[0].ID != teams[0].ID {
		t.Errorf("team order not preserved: got %q first", snap.Teams[0].ID)
	}
	if snap.Teams[0].Budget != roster.DefaultPurse-20_000_000 {
		t.Errorf("budget = %d", snap.Teams[0].Budget)
	}
	if len(snap.Teams[0].Squad) != 1 || snap.Teams[0].Squad[0].ID != "p1" {
		t.Errorf("squad = %+v", snap.Teams[0].Squad)
	}
	if snap.Players[0].Status != roster.Sold {
		t.Errorf("player status = %q, want Sold", snap.Players[0].Status)
	}
	if snap.Settings.MyTeamID != teams[0].ID {
		t.Errorf("my team = %q, want %q", snap.Settings.MyTeamID, teams[0].ID)
	}
}

func TestGateway_Reset(t *testing.T) {
	g := postgres.NewGateway(newTestDB(t))
	ctx := context.Background()

	teams, players := testDocuments()
	if err := g.SaveSnapshot(ctx, teams[:1], players[:1]); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := g.UpdateSetting(ctx, store.SettingMyTeamID, "CSK"); err != nil {
		t.Fatalf("UpdateSetting: %v", err)
	}

	if err := g.Reset(ctx, teams, players); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	snap, err := g.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Teams) != 2 || len(snap.Players) != 2 {
		t.Fatalf("got %d teams, %d players; want 2, 2", len(snap.Teams), len(snap.Players))
	}
	if snap.Settings.Status != "PAUSED" {
		t.Errorf("status = %q, want PAUSED", snap.Settings.Status)
	}
	if snap.Settings.MyTeamID != "" {
		t.Errorf("my team = %q, want empty", snap.Settings.MyTeamID)
	}
}
