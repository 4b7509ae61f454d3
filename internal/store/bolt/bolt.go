// Package bolt stores the auction as JSON documents in an embedded bbolt
// file. It is the default driver.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/store"
)

var (
	bucketSettings = []byte("settings")
	bucketTeams    = []byte("teams")
	bucketPlayers  = []byte("players")
	bucketEvents   = []byte("events")

	bucketEventVersions = []byte("event_versions")
)

func init() {
	store.Register("bolt", open)
}

func open(_ context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Gateway: NewGateway(db),
		Events:  NewEventStore(db, clk),
		Closer:  db,
		Ping: func(context.Context) error {
			return db.View(func(*bolt.Tx) error { return nil })
		},
	}, nil
}

// Open opens the database file at path and creates the buckets.
func Open(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSettings, bucketTeams, bucketPlayers, bucketEvents, bucketEventVersions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Gateway implements store.Gateway. Teams and players are keyed by their
// position so a cursor walk returns them in order.
type Gateway struct {
	db *bolt.DB
}

// NewGateway returns a new Gateway.
func NewGateway(db *bolt.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) LoadSnapshot(_ context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{Teams: []roster.Team{}, Players: []roster.Player{}}
	found := false

	err := g.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSettings).ForEach(func(k, v []byte) error {
			snap.Settings.Set(store.Setting(k), string(v))
			found = true
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketTeams).ForEach(func(_, v []byte) error {
			var t roster.Team
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("json unmarshal team: %w", err)
			}
			snap.Teams = append(snap.Teams, t)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketPlayers).ForEach(func(_, v []byte) error {
			var p roster.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("json unmarshal player: %w", err)
			}
			snap.Players = append(snap.Players, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	if !found && len(snap.Teams) == 0 && len(snap.Players) == 0 {
		return nil, store.ErrNotFound
	}
	return snap, nil
}

func (g *Gateway) SaveSnapshot(_ context.Context, teams []roster.Team, players []roster.Player) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		return replaceDocuments(tx, teams, players)
	})
}

func (g *Gateway) UpdateSetting(_ context.Context, key store.Setting, value string) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSettings).Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("updating setting %s: %w", key, err)
		}
		return nil
	})
}

func (g *Gateway) Reset(_ context.Context, teams []roster.Team, players []roster.Player) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		if err := replaceDocuments(tx, teams, players); err != nil {
			return err
		}
		b := tx.Bucket(bucketSettings)
		if err := b.Put([]byte(store.SettingStatus), []byte("PAUSED")); err != nil {
			return fmt.Errorf("resetting status: %w", err)
		}
		if err := b.Put([]byte(store.SettingMyTeamID), []byte{}); err != nil {
			return fmt.Errorf("resetting my team: %w", err)
		}
		return nil
	})
}

func replaceDocuments(tx *bolt.Tx, teams []roster.Team, players []roster.Player) error {
	if err := recreate(tx, bucketTeams); err != nil {
		return err
	}
	if err := recreate(tx, bucketPlayers); err != nil {
		return err
	}
	tb, pb := tx.Bucket(bucketTeams), tx.Bucket(bucketPlayers)
	for i, t := range teams {
		if err := putJSON(tb, uint64(i), t); err != nil {
			return fmt.Errorf("putting team %s: %w", t.ID, err)
		}
	}
	for i, p := range players {
		if err := putJSON(pb, uint64(i), p); err != nil {
			return fmt.Errorf("putting player %s: %w", p.ID, err)
		}
	}
	return nil
}

func recreate(tx *bolt.Tx, name []byte) error {
	if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
		return fmt.Errorf("delete bucket %s: %w", name, err)
	}
	if _, err := tx.CreateBucket(name); err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

func putJSON(b *bolt.Bucket, key uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return b.Put(itob(key), data)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
