// Package roster holds the auction vocabulary: players, teams and the
// default franchise list.
package roster

// Category is a player's playing role.
type Category string

const (
	Batsman      Category = "Batsman"
	Bowler       Category = "Bowler"
	AllRounder   Category = "All-Rounder"
	WicketKeeper Category = "Wicket-Keeper"
)

// Categories lists every category in display order.
var Categories = []Category{Batsman, Bowler, AllRounder, WicketKeeper}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Batsman, Bowler, AllRounder, WicketKeeper:
		return true
	}
	return false
}

// Country distinguishes domestic from overseas players.
type Country string

const (
	India    Country = "India"
	Overseas Country = "Overseas"
)

// PlayerStatus is the auction outcome for a player.
type PlayerStatus string

const (
	Available PlayerStatus = "Available"
	Sold      PlayerStatus = "Sold"
	Unsold    PlayerStatus = "Unsold"
)

// Stats carries the scores from the seed sheets. Display only.
type Stats struct {
	BattingScore    float64 `json:"battingScore"`
	BowlingScore    float64 `json:"bowlingScore"`
	AllRounderScore float64 `json:"allrounderScore"`
}

// Player is a single entry in the auction pool.
type Player struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Category   Category     `json:"category"`
	Country    Country      `json:"country"`
	BasePrice  int64        `json:"basePrice"`
	IsUncapped bool         `json:"isUncapped"`
	Rating     int          `json:"rating"`
	Status     PlayerStatus `json:"status"`
	SoldTo     string       `json:"soldTo,omitempty"`
	SoldPrice  int64        `json:"soldPrice"`

	OriginalRole string `json:"originalRole,omitempty"`
	AuctionSet   string `json:"auctionSet,omitempty"`
	Stats        *Stats `json:"stats,omitempty"`
}

// IsOverseas reports whether the player counts against the overseas cap.
func (p Player) IsOverseas() bool { return p.Country == Overseas }

// Fresh returns a copy of p restored to the Available state.
func (p Player) Fresh() Player {
	p.Status = Available
	p.SoldTo = ""
	p.SoldPrice = 0
	if p.Stats != nil {
		s := *p.Stats
		p.Stats = &s
	}
	return p
}

// Team is a franchise taking part in the auction.
type Team struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Budget       int64    `json:"budget"`
	Squad        []Player `json:"squad"`
	RTMAvailable bool     `json:"rtmAvailable"`
}

// Clone returns a deep copy of t.
func (t Team) Clone() Team {
	squad := make([]Player, len(t.Squad))
	copy(squad, t.Squad)
	t.Squad = squad
	return t
}

// OverseasCount returns the number of overseas players in the squad.
func (t Team) OverseasCount() int {
	n := 0
	for _, p := range t.Squad {
		if p.IsOverseas() {
			n++
		}
	}
	return n
}

// Franchise is a fixed roster entry used to build teams at session start.
type Franchise struct {
	ID   string
	Name string
}

// Franchises is the default IPL roster.
var Franchises = []Franchise{
	{ID: "CSK", Name: "Chennai Super Kings"},
	{ID: "DC", Name: "Delhi Capitals"},
	{ID: "GT", Name: "Gujarat Titans"},
	{ID: "KKR", Name: "Kolkata Knight Riders"},
	{ID: "LSG", Name: "Lucknow Super Giants"},
	{ID: "MI", Name: "Mumbai Indians"},
	{ID: "PBKS", Name: "Punjab Kings"},
	{ID: "RR", Name: "Rajasthan Royals"},
	{ID: "RCB", Name: "Royal Challengers Bengaluru"},
	{ID: "SRH", Name: "Sunrisers Hyderabad"},
}

// DefaultPurse is the starting budget of every franchise (120 Cr).
const DefaultPurse int64 = 1_200_000_000

// NewTeams builds fresh teams for the given franchises, each with purse.
func NewTeams(franchises []Franchise, purse int64) []Team {
	teams := make([]Team, 0, len(franchises))
	for _, f := range franchises {
		teams = append(teams, Team{
			ID:           f.ID,
			Name:         f.Name,
			Budget:       purse,
			Squad:        []Player{},
			RTMAvailable: true,
		})
	}
	return teams
}

// ClonePlayers returns a deep copy of players.
func ClonePlayers(players []Player) []Player {
	out := make([]Player, len(players))
	for i, p := range players {
		if p.Stats != nil {
			s := *p.Stats
			p.Stats = &s
		}
		out[i] = p
	}
	return out
}

// CloneTeams returns a deep copy of teams.
func CloneTeams(teams []Team) []Team {
	out := make([]Team, len(teams))
	for i, t := range teams {
		out[i] = t.Clone()
	}
	return out
}
