package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/event"
)

// EventStore implements event.Store using database/sql.
type EventStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *sql.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, aggregate_id, type, data, version, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now()
		}
		data := string(e.Data)
		if data == "" {
			data = "{}"
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.AggregateID, string(e.Type), data, e.Version,
			e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting event (aggregate=%s, version=%d): %w", e.AggregateID, e.Version, err)
		}
	}

	return tx.Commit()
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE aggregate_id = ? ORDER BY version ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return scanEvents(rows)
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE type = ? ORDER BY seq ASC`, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			e         event.Event
			typ       string
			data      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &typ, &data, &e.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event time: %w", err)
		}
		e.Type = event.Type(typ)
		e.Data = json.RawMessage(data)
		e.CreatedAt = t
		events = append(events, e)
	}
	return events, rows.Err()
}
