package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/event"
)

const selectEvents = `SELECT id, aggregate_id, type, data, version, created_at FROM events`

// EventStore keeps the audit log in the events table.
type EventStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *sqlx.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

// Append inserts events as one multi-row statement, so a version clash
// rejects the whole batch.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]event.Event, len(events))
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now().UTC()
		}
		if len(e.Data) == 0 {
			e.Data = []byte(`{}`)
		}
		rows[i] = e
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO events (id, aggregate_id, type, data, version, created_at)
		 VALUES (:id, :aggregate_id, :type, :data, :version, :created_at)`, rows)
	if err != nil {
		first, last := rows[0], rows[len(rows)-1]
		return fmt.Errorf("inserting events (aggregate=%s, versions %d-%d): %w",
			first.AggregateID, first.Version, last.Version, err)
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	return s.query(ctx, selectEvents+` WHERE aggregate_id = $1 ORDER BY version`, aggregateID)
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	return s.query(ctx, selectEvents+` WHERE type = $1 ORDER BY created_at, version`, eventType)
}

func (s *EventStore) query(ctx context.Context, q string, arg any) ([]event.Event, error) {
	events := []event.Event{}
	if err := s.db.SelectContext(ctx, &events, q, arg); err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return events, nil
}
