package auction_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
	"github.com/jensholdgaard/cricket-auction/internal/store"
)

var testEpoch = time.Date(2026, 3, 22, 18, 30, 0, 0, time.UTC)

func player(id string, country roster.Country, base int64) roster.Player {
	return roster.Player{
		ID:        id,
		Name:      "Player " + id,
		Category:  roster.Batsman,
		Country:   country,
		BasePrice: base,
		Rating:    85,
		Status:    roster.Available,
	}
}

// scenarioTeams is team A with 100M and team B with 50M, both empty.
func scenarioTeams() []roster.Team {
	return []roster.Team{
		{ID: "A", Name: "Team A", Budget: 100_000_000, Squad: []roster.Player{}, RTMAvailable: true},
		{ID: "B", Name: "Team B", Budget: 50_000_000, Squad: []roster.Player{}, RTMAvailable: true},
	}
}

func newEngine(t *testing.T, teams []roster.Team, players ...roster.Player) *auction.Engine {
	t.Helper()
	return auction.NewEngine(auction.Options{
		Teams:     teams,
		Seed:      players,
		SessionID: "session-test",
		Clock:     clock.NewMock(testEpoch),
		Picker:    auction.NewPicker(42),
	})
}

func mustDispatch(t *testing.T, e *auction.Engine, cmd auction.Command) auction.State {
	t.Helper()
	s, err := e.Dispatch(cmd)
	if err != nil {
		t.Fatalf("Dispatch(%s) error = %v", cmd.Name(), err)
	}
	return s
}

// sameState compares everything but the revision counter.
func sameState(a, b auction.State) bool {
	a.Revision, b.Revision = 0, 0
	return reflect.DeepEqual(a, b)
}

func TestEngine_InitialState(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	s := e.Snapshot()

	if s.Status != auction.StatusIdle {
		t.Errorf("Status = %q, want IDLE", s.Status)
	}
	if len(s.Teams) != 2 || len(s.Players) != 1 {
		t.Fatalf("got %d teams, %d players", len(s.Teams), len(s.Players))
	}
	if s.CurrentPlayerID != "" || s.CurrentBidder != "" {
		t.Errorf("expected empty block, got %+v", s)
	}
}

func TestEngine_Scenario(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))

	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})

	s := mustDispatch(t, e, auction.PlaceBid{TeamID: "A", Amount: 20_000_000})
	if s.CurrentBid != 20_000_000 || s.CurrentBidder != "A" {
		t.Fatalf("after A's bid: bid=%d bidder=%q", s.CurrentBid, s.CurrentBidder)
	}

	_, err := e.Dispatch(auction.PlaceBid{TeamID: "B", Amount: 70_000_000})
	var rejected *auction.BidRejectedError
	if !errors.As(err, &rejected) || rejected.Verdict.Reason != rules.ReasonInsufficientBudget {
		t.Fatalf("B's 70M bid error = %v, want insufficient budget", err)
	}
	if !errors.Is(err, rules.ErrInsufficientBudget) {
		t.Errorf("error does not wrap ErrInsufficientBudget: %v", err)
	}

	// A is still the highest bidder, so raising its own bid is refused.
	before := e.Snapshot()
	if _, err := e.Dispatch(auction.PlaceBid{TeamID: "A", Amount: 22_000_000}); !errors.Is(err, auction.ErrSelfOutbid) {
		t.Fatalf("A's 22M bid error = %v, want ErrSelfOutbid", err)
	}
	if !sameState(before, e.Snapshot()) {
		t.Fatal("rejected bid changed state")
	}

	s = mustDispatch(t, e, auction.SellPlayer{})
	a, _ := s.Team("A")
	if a.Budget != 80_000_000 {
		t.Errorf("A budget = %d, want 80,000,000", a.Budget)
	}
	if len(a.Squad) != 1 || a.Squad[0].SoldPrice != 20_000_000 {
		t.Errorf("A squad = %+v", a.Squad)
	}
	p, _ := s.Player("p1")
	if p.Status != roster.Sold || p.SoldTo != "A" || p.SoldPrice != 20_000_000 {
		t.Errorf("player = %+v", p)
	}
	if s.Status != auction.StatusSold {
		t.Errorf("Status = %q, want SOLD", s.Status)
	}
}

func TestEngine_ScenarioWithCounterBid(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))

	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PlaceBid{TeamID: "A", Amount: 20_000_000})

	if _, err := e.Dispatch(auction.PlaceBid{TeamID: "B", Amount: 21_000_000}); !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("21M bid error = %v, want ErrBidTooLow", err)
	}
	s := mustDispatch(t, e, auction.PlaceBid{TeamID: "B"})
	if s.CurrentBid != 22_000_000 || s.CurrentBidder != "B" {
		t.Fatalf("zero-amount bid: bid=%d bidder=%q, want 22M by B", s.CurrentBid, s.CurrentBidder)
	}

	s = mustDispatch(t, e, auction.SellPlayer{})
	b, _ := s.Team("B")
	if b.Budget != 28_000_000 || len(b.Squad) != 1 {
		t.Errorf("B = budget %d squad %d, want 28M and 1", b.Budget, len(b.Squad))
	}
	a, _ := s.Team("A")
	if a.Budget != 100_000_000 || len(a.Squad) != 0 {
		t.Errorf("A mutated: %+v", a)
	}
}

func TestEngine_OpeningBidAtBasePrice(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})

	if _, err := e.Dispatch(auction.PlaceBid{TeamID: "A", Amount: 19_000_000}); !errors.Is(err, auction.ErrBidTooLow) {
		t.Fatalf("below-base bid error = %v, want ErrBidTooLow", err)
	}
	s := mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})
	if s.CurrentBid != 20_000_000 {
		t.Errorf("opening zero-amount bid = %d, want base price", s.CurrentBid)
	}
}

func TestEngine_SellWithoutBidderIsNoop(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	before := e.Snapshot()

	_, err := e.Dispatch(auction.SellPlayer{})
	if !errors.Is(err, auction.ErrNoBidder) || !errors.Is(err, auction.ErrIllegalTransition) {
		t.Fatalf("SellPlayer error = %v, want ErrNoBidder", err)
	}
	after := e.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestEngine_Pass(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})

	s := mustDispatch(t, e, auction.PassPlayer{})

	p, _ := s.Player("p1")
	if p.Status != roster.Unsold {
		t.Errorf("player status = %q, want Unsold", p.Status)
	}
	if !reflect.DeepEqual(s.Teams, scenarioTeams()) {
		t.Errorf("teams mutated: %+v", s.Teams)
	}
	if len(s.History) != 1 || s.History[0].Kind != auction.HistoryUnsold || s.History[0].PlayerID != "p1" {
		t.Errorf("history = %+v", s.History)
	}
	if !s.History[0].Timestamp.Equal(testEpoch) {
		t.Errorf("history timestamp = %v, want %v", s.History[0].Timestamp, testEpoch)
	}
	if s.Status != auction.StatusUnsold {
		t.Errorf("Status = %q, want UNSOLD", s.Status)
	}
}

func TestEngine_Conservation(t *testing.T) {
	var pool []roster.Player
	for i := 0; i < 12; i++ {
		pool = append(pool, player(fmt.Sprintf("p%02d", i), roster.India, int64(5_000_000+i*4_000_000)))
	}
	teams := roster.NewTeams(roster.Franchises[:4], roster.DefaultPurse)
	e := newEngine(t, teams, pool...)

	for i := 0; i < len(pool); i++ {
		s := mustDispatch(t, e, auction.StartNext{})
		if i%4 == 3 {
			mustDispatch(t, e, auction.PassPlayer{})
			mustDispatch(t, e, auction.NextPlayer{})
			continue
		}
		// Alternate three teams so nobody outbids itself.
		for j := 0; j <= i%3; j++ {
			bidder := teams[(i+j)%len(teams)].ID
			s = mustDispatch(t, e, auction.PlaceBid{TeamID: bidder})
			if s.CurrentBidder != bidder {
				t.Fatalf("bidder = %q, want %q", s.CurrentBidder, bidder)
			}
		}
		winner := s.CurrentBidder
		price := s.CurrentBid
		before, _ := s.Team(winner)
		s = mustDispatch(t, e, auction.SellPlayer{})
		after, _ := s.Team(winner)
		if after.Budget != before.Budget-price {
			t.Fatalf("budget after = %d, want %d", after.Budget, before.Budget-price)
		}
		if len(after.Squad) != len(before.Squad)+1 {
			t.Fatalf("squad grew by %d", len(after.Squad)-len(before.Squad))
		}
		mustDispatch(t, e, auction.NextPlayer{})
	}

	s := e.Snapshot()
	var spent, recorded int64
	for _, team := range s.Teams {
		spent += roster.DefaultPurse - team.Budget
	}
	for _, h := range s.History {
		if h.Kind == auction.HistorySold {
			recorded += h.Amount
		}
	}
	for _, p := range s.Players {
		if p.Status == roster.Available {
			t.Errorf("player %s never auctioned", p.ID)
		}
	}
	if spent != recorded {
		t.Errorf("spent %d != recorded sales %d", spent, recorded)
	}
	if _, err := e.Dispatch(auction.StartNext{}); !errors.Is(err, auction.ErrPoolExhausted) {
		t.Errorf("StartNext on empty pool error = %v, want ErrPoolExhausted", err)
	}
}

func TestEngine_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup []auction.Command
		cmd   auction.Command
	}{
		{name: "bid while idle", cmd: auction.PlaceBid{TeamID: "A"}},
		{name: "sell while idle", cmd: auction.SellPlayer{}},
		{name: "pass while idle", cmd: auction.PassPlayer{}},
		{name: "next while idle", cmd: auction.NextPlayer{}},
		{
			name:  "start while bidding",
			setup: []auction.Command{auction.StartPlayer{PlayerID: "p1"}},
			cmd:   auction.StartPlayer{PlayerID: "p2"},
		},
		{
			name:  "next while bidding",
			setup: []auction.Command{auction.StartPlayer{PlayerID: "p1"}},
			cmd:   auction.NextPlayer{},
		},
		{
			name:  "load while bidding",
			setup: []auction.Command{auction.StartPlayer{PlayerID: "p1"}},
			cmd:   auction.LoadPlayers{Players: []roster.Player{player("x", roster.India, 1)}},
		},
		{
			name:  "bid after sale",
			setup: []auction.Command{auction.StartPlayer{PlayerID: "p1"}, auction.PlaceBid{TeamID: "A"}, auction.SellPlayer{}},
			cmd:   auction.PlaceBid{TeamID: "B"},
		},
		{
			name:  "bid while paused",
			setup: []auction.Command{auction.StartPlayer{PlayerID: "p1"}, auction.SetStatus{Mode: auction.ModePaused}},
			cmd:   auction.PlaceBid{TeamID: "A"},
		},
		{
			name:  "reoffer while bidding",
			setup: []auction.Command{auction.StartPlayer{PlayerID: "p1"}},
			cmd:   auction.ReofferUnsold{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000), player("p2", roster.India, 20_000_000))
			for _, c := range tt.setup {
				mustDispatch(t, e, c)
			}
			before := e.Snapshot()
			if _, err := e.Dispatch(tt.cmd); !errors.Is(err, auction.ErrIllegalTransition) {
				t.Fatalf("Dispatch(%s) error = %v, want ErrIllegalTransition", tt.cmd.Name(), err)
			}
			if !reflect.DeepEqual(before, e.Snapshot()) {
				t.Fatal("rejected command changed state")
			}
		})
	}
}

func TestEngine_StartPlayerErrors(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))

	if _, err := e.Dispatch(auction.StartPlayer{PlayerID: "nope"}); !errors.Is(err, auction.ErrUnknownPlayer) {
		t.Errorf("unknown player error = %v", err)
	}
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PassPlayer{})
	mustDispatch(t, e, auction.NextPlayer{})
	if _, err := e.Dispatch(auction.StartPlayer{PlayerID: "p1"}); !errors.Is(err, auction.ErrPlayerUnavailable) {
		t.Errorf("unsold player error = %v, want ErrPlayerUnavailable", err)
	}
}

func TestEngine_BidRules(t *testing.T) {
	full := make([]roster.Player, rules.MaxSquadSize)
	overseas := make([]roster.Player, rules.MaxOverseas)
	for i := range full {
		full[i] = player(fmt.Sprintf("f%d", i), roster.India, 1)
	}
	for i := range overseas {
		overseas[i] = player(fmt.Sprintf("o%d", i), roster.Overseas, 1)
	}

	tests := []struct {
		name   string
		team   roster.Team
		player roster.Player
		want   rules.Reason
		err    error
	}{
		{
			name:   "squad full",
			team:   roster.Team{ID: "A", Budget: 100_000_000, Squad: full},
			player: player("p1", roster.India, 20_000_000),
			want:   rules.ReasonSquadFull,
			err:    rules.ErrSquadFull,
		},
		{
			name:   "overseas cap",
			team:   roster.Team{ID: "A", Budget: 100_000_000, Squad: overseas},
			player: player("p1", roster.Overseas, 20_000_000),
			want:   rules.ReasonOverseasCap,
			err:    rules.ErrOverseasCap,
		},
		{
			name:   "budget short of base price",
			team:   roster.Team{ID: "A", Budget: 10_000_000, Squad: []roster.Player{}},
			player: player("p1", roster.India, 20_000_000),
			want:   rules.ReasonInsufficientBudget,
			err:    rules.ErrInsufficientBudget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, []roster.Team{tt.team}, tt.player)
			mustDispatch(t, e, auction.StartPlayer{PlayerID: tt.player.ID})

			_, err := e.Dispatch(auction.PlaceBid{TeamID: "A"})
			var rejected *auction.BidRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("error = %v, want *BidRejectedError", err)
			}
			if rejected.Verdict.Reason != tt.want {
				t.Errorf("reason = %q, want %q", rejected.Verdict.Reason, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error %v does not wrap %v", err, tt.err)
			}
		})
	}

	t.Run("overseas player allowed for domestic-heavy squad", func(t *testing.T) {
		e := newEngine(t, []roster.Team{{ID: "A", Budget: 100_000_000, Squad: full[:14]}}, player("p1", roster.Overseas, 20_000_000))
		mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
		mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})
	})

	t.Run("unknown team", func(t *testing.T) {
		e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
		mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
		if _, err := e.Dispatch(auction.PlaceBid{TeamID: "Z"}); !errors.Is(err, auction.ErrUnknownTeam) {
			t.Errorf("error = %v, want ErrUnknownTeam", err)
		}
	})
}

func TestEngine_FullReset(t *testing.T) {
	pool := []roster.Player{
		player("p1", roster.India, 20_000_000),
		player("p2", roster.Overseas, 20_000_000),
		player("p3", roster.India, 20_000_000),
	}
	e := newEngine(t, scenarioTeams(), pool...)

	mustDispatch(t, e, auction.SelectMyTeam{TeamID: "B"})
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PlaceBid{TeamID: "B"})
	mustDispatch(t, e, auction.SellPlayer{})
	mustDispatch(t, e, auction.NextPlayer{})
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p2"})
	mustDispatch(t, e, auction.PassPlayer{})
	mustDispatch(t, e, auction.NextPlayer{})
	mustDispatch(t, e, auction.LoadPlayers{Players: []roster.Player{player("x1", roster.India, 30_000_000)}})
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "x1"})
	mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})

	s := mustDispatch(t, e, auction.FullReset{})

	if !reflect.DeepEqual(s.Teams, scenarioTeams()) {
		t.Errorf("teams after reset = %+v", s.Teams)
	}
	if len(s.Players) != len(pool) {
		t.Fatalf("got %d players, want %d", len(s.Players), len(pool))
	}
	for _, p := range s.Players {
		if p.Status != roster.Available || p.SoldTo != "" || p.SoldPrice != 0 {
			t.Errorf("player %s not fresh: %+v", p.ID, p)
		}
	}
	if s.Status != auction.StatusPaused {
		t.Errorf("Status = %q, want PAUSED", s.Status)
	}
	if len(s.History) != 0 || s.MyTeamID != "" || s.CurrentPlayerID != "" || s.CurrentBidder != "" {
		t.Errorf("reset left state behind: %+v", s)
	}

	s = mustDispatch(t, e, auction.SetStatus{Mode: auction.ModeLive})
	if s.Status != auction.StatusIdle {
		t.Errorf("resume after reset = %q, want IDLE", s.Status)
	}
}

func TestEngine_PauseResume(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})

	s := mustDispatch(t, e, auction.SetStatus{Mode: auction.ModePaused})
	if s.Status != auction.StatusPaused || s.PausedFrom != auction.StatusBidding {
		t.Fatalf("paused state = %q from %q", s.Status, s.PausedFrom)
	}
	if s.CurrentBid != 20_000_000 || s.CurrentBidder != "A" {
		t.Errorf("pause dropped the bid: %d by %q", s.CurrentBid, s.CurrentBidder)
	}
	// Pausing twice is harmless.
	mustDispatch(t, e, auction.SetStatus{Mode: auction.ModePaused})

	s = mustDispatch(t, e, auction.SetStatus{Mode: auction.ModeLive})
	if s.Status != auction.StatusBidding || s.PausedFrom != "" {
		t.Fatalf("resumed state = %q from %q", s.Status, s.PausedFrom)
	}
	s = mustDispatch(t, e, auction.PlaceBid{TeamID: "B"})
	if s.CurrentBid != 22_000_000 {
		t.Errorf("bid after resume = %d, want 22M", s.CurrentBid)
	}

	// LIVE while not paused is a no-op.
	s = mustDispatch(t, e, auction.SetStatus{Mode: auction.ModeLive})
	if s.Status != auction.StatusBidding {
		t.Errorf("status = %q, want BIDDING", s.Status)
	}
	if _, err := e.Dispatch(auction.SetStatus{Mode: "SIDEWAYS"}); !errors.Is(err, auction.ErrIllegalTransition) {
		t.Errorf("unknown mode error = %v", err)
	}
}

func TestEngine_LiveClosesRound(t *testing.T) {
	tests := []struct {
		name  string
		close auction.Command
		from  auction.Status
	}{
		{name: "after sale", close: auction.SellPlayer{}, from: auction.StatusSold},
		{name: "after pass", close: auction.PassPlayer{}, from: auction.StatusUnsold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000), player("p2", roster.India, 20_000_000))
			mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
			mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})
			if s := mustDispatch(t, e, tt.close); s.Status != tt.from {
				t.Fatalf("Status = %q, want %q", s.Status, tt.from)
			}
			_ = e.PendingEvents()

			s := mustDispatch(t, e, auction.SetStatus{Mode: auction.ModeLive})
			if s.Status != auction.StatusIdle {
				t.Errorf("Status = %q, want IDLE", s.Status)
			}
			if s.CurrentPlayerID != "" || s.CurrentBid != 0 || s.CurrentBidder != "" {
				t.Errorf("block not cleared: %q %d %q", s.CurrentPlayerID, s.CurrentBid, s.CurrentBidder)
			}
			events := e.PendingEvents()
			if len(events) != 1 || events[0].Type != event.StatusChanged {
				t.Errorf("events = %+v", events)
			}

			// The next player can go straight on the block.
			s = mustDispatch(t, e, auction.StartPlayer{PlayerID: "p2"})
			if s.Status != auction.StatusBidding || s.CurrentPlayerID != "p2" {
				t.Errorf("start after live = %q on %q", s.Status, s.CurrentPlayerID)
			}
		})
	}
}

func TestEngine_LoadPlayers(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))

	sold := player("n1", roster.India, 10_000_000)
	sold.Status = roster.Sold
	sold.SoldTo = "A"
	sold.SoldPrice = 99

	s := mustDispatch(t, e, auction.LoadPlayers{Players: []roster.Player{sold, player("n2", roster.Overseas, 15_000_000)}})
	if len(s.Players) != 2 {
		t.Fatalf("got %d players, want 2", len(s.Players))
	}
	for _, p := range s.Players {
		if p.Status != roster.Available || p.SoldTo != "" || p.SoldPrice != 0 {
			t.Errorf("player %s not normalised: %+v", p.ID, p)
		}
	}
	if s.Status != auction.StatusIdle {
		t.Errorf("Status = %q, want IDLE", s.Status)
	}

	tests := []struct {
		name    string
		players []roster.Player
		want    error
	}{
		{name: "duplicate id", players: []roster.Player{player("d", roster.India, 1), player("d", roster.India, 1)}, want: auction.ErrDuplicatePlayer},
		{name: "missing id", players: []roster.Player{player("", roster.India, 1)}, want: auction.ErrInvalidPlayer},
		{name: "bad category", players: []roster.Player{{ID: "c", Name: "C", Category: "Umpire", BasePrice: 1}}, want: auction.ErrInvalidPlayer},
		{name: "zero base price", players: []roster.Player{player("z", roster.India, 0)}, want: auction.ErrInvalidPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.Snapshot()
			if _, err := e.Dispatch(auction.LoadPlayers{Players: tt.players}); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !reflect.DeepEqual(before, e.Snapshot()) {
				t.Fatal("rejected load changed state")
			}
		})
	}

	t.Run("paused stays paused", func(t *testing.T) {
		mustDispatch(t, e, auction.SetStatus{Mode: auction.ModePaused})
		s := mustDispatch(t, e, auction.LoadPlayers{Players: []roster.Player{player("q", roster.India, 1)}})
		if s.Status != auction.StatusPaused {
			t.Errorf("Status = %q, want PAUSED", s.Status)
		}
		s = mustDispatch(t, e, auction.SetStatus{Mode: auction.ModeLive})
		if s.Status != auction.StatusIdle {
			t.Errorf("resumed Status = %q, want IDLE", s.Status)
		}
	})
}

func TestEngine_ReofferUnsold(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000), player("p2", roster.India, 20_000_000))

	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PassPlayer{})
	mustDispatch(t, e, auction.NextPlayer{})

	s := e.Snapshot()
	if got := s.Eligible(); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("eligible before reoffer = %v, want [p2]", got)
	}

	s = mustDispatch(t, e, auction.ReofferUnsold{})
	p, _ := s.Player("p1")
	if p.Status != roster.Available {
		t.Errorf("p1 status = %q, want Available", p.Status)
	}
	if got := s.Eligible(); len(got) != 2 {
		t.Errorf("eligible after reoffer = %v", got)
	}
}

func TestEngine_SelectMyTeam(t *testing.T) {
	e := newEngine(t, scenarioTeams())

	s := mustDispatch(t, e, auction.SelectMyTeam{TeamID: "A"})
	if s.MyTeamID != "A" {
		t.Errorf("MyTeamID = %q, want A", s.MyTeamID)
	}
	s = mustDispatch(t, e, auction.SelectMyTeam{TeamID: "B"})
	if s.MyTeamID != "B" {
		t.Errorf("MyTeamID = %q, want B", s.MyTeamID)
	}
	if _, err := e.Dispatch(auction.SelectMyTeam{TeamID: "Z"}); !errors.Is(err, auction.ErrUnknownTeam) {
		t.Errorf("unknown team error = %v", err)
	}
	s = mustDispatch(t, e, auction.SelectMyTeam{})
	if s.MyTeamID != "" {
		t.Errorf("MyTeamID = %q, want cleared", s.MyTeamID)
	}
}

func TestEngine_SnapshotIsDeepCopy(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})
	mustDispatch(t, e, auction.SellPlayer{})

	s := e.Snapshot()
	s.Teams[0].Budget = 0
	s.Teams[0].Squad[0].Name = "mutated"
	s.Players[0].Status = roster.Available
	s.History[0].Amount = 1

	fresh := e.Snapshot()
	if fresh.Teams[0].Budget != 80_000_000 || fresh.Teams[0].Squad[0].Name == "mutated" {
		t.Error("snapshot shares team memory with the engine")
	}
	if fresh.Players[0].Status != roster.Sold || fresh.History[0].Amount != 20_000_000 {
		t.Error("snapshot shares player or history memory with the engine")
	}
}

func TestEngine_Events(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 20_000_000))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})
	mustDispatch(t, e, auction.PlaceBid{TeamID: "A"})
	_, _ = e.Dispatch(auction.PlaceBid{TeamID: "A"}) // rejected, no event
	mustDispatch(t, e, auction.SellPlayer{})

	events := e.PendingEvents()
	want := []event.Type{event.PlayerStarted, event.BidPlaced, event.PlayerSold}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event %d type = %q, want %q", i, ev.Type, want[i])
		}
		if ev.Version != i+1 || ev.AggregateID != "session-test" || ev.ID == "" {
			t.Errorf("event %d = %+v", i, ev)
		}
		if !ev.CreatedAt.Equal(testEpoch) {
			t.Errorf("event %d time = %v", i, ev.CreatedAt)
		}
	}
	if len(e.PendingEvents()) != 0 {
		t.Error("PendingEvents did not clear the buffer")
	}

	e.RequeueEvents(events[:1])
	mustDispatch(t, e, auction.NextPlayer{})
	again := e.PendingEvents()
	if len(again) != 2 || again[0].Type != event.PlayerStarted || again[1].Type != event.RoundReset {
		t.Errorf("requeued events = %+v", again)
	}
}

func TestEngine_Restore(t *testing.T) {
	seed := []roster.Player{player("p1", roster.India, 20_000_000)}
	e := newEngine(t, scenarioTeams(), seed...)

	saved := scenarioTeams()
	saved[0].Budget = 1
	e.Restore(store.Snapshot{
		Settings: store.Settings{Status: "PAUSED", MyTeamID: "A"},
		Teams:    saved,
		Players:  []roster.Player{player("x", roster.Overseas, 5)},
	})
	s := e.Snapshot()
	if s.Status != auction.StatusPaused || s.MyTeamID != "A" {
		t.Errorf("restored status %q my team %q", s.Status, s.MyTeamID)
	}
	if s.Teams[0].Budget != 1 || s.Players[0].ID != "x" {
		t.Errorf("restored documents = %+v %+v", s.Teams, s.Players)
	}

	// Events buffered before a restore describe the old state.
	mustDispatch(t, e, auction.SetStatus{Mode: auction.ModeLive})
	e.Restore(store.Snapshot{Settings: store.Settings{Status: "PAUSED"}})
	if events := e.PendingEvents(); len(events) != 0 {
		t.Errorf("events survived restore: %+v", events)
	}

	// Empty documents fall back to the defaults.
	e.Restore(store.Snapshot{Settings: store.Settings{Status: "LIVE"}})
	s = e.Snapshot()
	if s.Status != auction.StatusIdle || len(s.Players) != 1 || s.Teams[0].Budget != 100_000_000 {
		t.Errorf("fallback restore = %+v", s)
	}
}

func TestEngine_Draw(t *testing.T) {
	var pool []roster.Player
	for i := 0; i < 8; i++ {
		pool = append(pool, player(fmt.Sprintf("p%d", i), roster.India, 1_000_000))
	}

	order := func() []string {
		e := newEngine(t, scenarioTeams(), pool...)
		var ids []string
		for range pool {
			s := mustDispatch(t, e, auction.StartNext{})
			ids = append(ids, s.CurrentPlayerID)
			mustDispatch(t, e, auction.PassPlayer{})
			mustDispatch(t, e, auction.NextPlayer{})
		}
		return ids
	}

	first, second := order(), order()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed gave different orders: %v vs %v", first, second)
	}
	seen := map[string]bool{}
	for _, id := range first {
		if seen[id] {
			t.Fatalf("player %s drawn twice", id)
		}
		seen[id] = true
	}
	if len(seen) != len(pool) {
		t.Errorf("drew %d distinct players, want %d", len(seen), len(pool))
	}
}

func TestEngine_DrawExcludesCurrent(t *testing.T) {
	e := newEngine(t, scenarioTeams(), player("p1", roster.India, 1), player("p2", roster.India, 1))
	mustDispatch(t, e, auction.StartPlayer{PlayerID: "p1"})

	for i := 0; i < 20; i++ {
		p, err := e.Draw()
		if err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
		if p.ID != "p2" {
			t.Fatalf("Draw() = %s, want p2", p.ID)
		}
	}
}
