package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	PlayerStarted    Type = "auction.player_started"
	BidPlaced        Type = "auction.bid_placed"
	PlayerSold       Type = "auction.player_sold"
	PlayerUnsold     Type = "auction.player_unsold"
	RoundReset       Type = "auction.round_reset"
	PlayersLoaded    Type = "auction.players_loaded"
	PlayersReoffered Type = "auction.players_reoffered"
	StatusChanged    Type = "auction.status_changed"
	AuctionReset     Type = "auction.reset"
	TeamSelected     Type = "viewer.team_selected"
)

// Store is the append-only audit log. Every store driver provides one.
type Store interface {
	// Append writes events in one transaction. A repeated
	// (AggregateID, Version) pair fails the whole batch.
	Append(ctx context.Context, events ...Event) error
	// Load returns one session's events in version order.
	Load(ctx context.Context, aggregateID string) ([]Event, error)
	// LoadByType returns events of one type across sessions, oldest first.
	LoadByType(ctx context.Context, eventType Type) ([]Event, error)
}

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PlayerStartedData is the payload for PlayerStarted events.
type PlayerStartedData struct {
	PlayerID  string `json:"player_id"`
	BasePrice int64  `json:"base_price"`
}

// BidPlacedData is the payload for BidPlaced events.
type BidPlacedData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
}

// PlayerSoldData is the payload for PlayerSold events.
type PlayerSoldData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
}

// PlayerUnsoldData is the payload for PlayerUnsold events.
type PlayerUnsoldData struct {
	PlayerID string `json:"player_id"`
}

// PlayersLoadedData is the payload for PlayersLoaded events.
type PlayersLoadedData struct {
	Count int `json:"count"`
}

// PlayersReofferedData is the payload for PlayersReoffered events.
type PlayersReofferedData struct {
	PlayerIDs []string `json:"player_ids"`
}

// StatusChangedData is the payload for StatusChanged events.
type StatusChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TeamSelectedData is the payload for TeamSelected events.
type TeamSelectedData struct {
	TeamID string `json:"team_id"`
}

// Decode unmarshals the payload of e into a value of type T.
func Decode[T any](e Event) (T, error) {
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return v, fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return v, nil
}
