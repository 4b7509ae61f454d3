package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/event"
)

// EventStore implements event.Store. Events are keyed by a bucket
// sequence, so a cursor walk yields insertion order.
type EventStore struct {
	db    *bolt.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *bolt.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, idx := tx.Bucket(bucketEvents), tx.Bucket(bucketEventVersions)
		for _, e := range events {
			key := []byte(versionKey(e))
			if idx.Get(key) != nil {
				return fmt.Errorf("event (aggregate=%s, version=%d) already exists", e.AggregateID, e.Version)
			}
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = s.clock.Now().UTC()
			}
			if len(e.Data) == 0 {
				e.Data = json.RawMessage(`{}`)
			}
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
			if err := putJSON(b, seq, e); err != nil {
				return fmt.Errorf("inserting event (aggregate=%s, version=%d): %w", e.AggregateID, e.Version, err)
			}
			if err := idx.Put(key, itob(seq)); err != nil {
				return fmt.Errorf("indexing event: %w", err)
			}
		}
		return nil
	})
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	events, err := s.scan(func(e event.Event) bool { return e.AggregateID == aggregateID })
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Version < events[j].Version })
	return events, nil
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	events, err := s.scan(func(e event.Event) bool { return e.Type == eventType })
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return events, nil
}

func (s *EventStore) scan(keep func(event.Event) bool) ([]event.Event, error) {
	var events []event.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("json unmarshal event: %w", err)
			}
			if keep(e) {
				events = append(events, e)
			}
			return nil
		})
	})
	return events, err
}

func versionKey(e event.Event) string {
	return fmt.Sprintf("%s/%d", e.AggregateID, e.Version)
}
