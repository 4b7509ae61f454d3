package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/store"
)

// Gateway implements store.Gateway using database/sql.
type Gateway struct {
	db *sql.DB
}

// NewGateway returns a new Gateway.
func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

const upsertSetting = `INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value`

func (g *Gateway) LoadSnapshot(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{Teams: []roster.Team{}, Players: []roster.Player{}}
	found := false

	rows, err := g.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		snap.Settings.Set(store.Setting(key), value)
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}

	err = loadDocuments(ctx, g.db, "teams", func(doc []byte) error {
		var t roster.Team
		if err := json.Unmarshal(doc, &t); err != nil {
			return err
		}
		snap.Teams = append(snap.Teams, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = loadDocuments(ctx, g.db, "players", func(doc []byte) error {
		var p roster.Player
		if err := json.Unmarshal(doc, &p); err != nil {
			return err
		}
		snap.Players = append(snap.Players, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !found && len(snap.Teams) == 0 && len(snap.Players) == 0 {
		return nil, store.ErrNotFound
	}
	return snap, nil
}

func (g *Gateway) SaveSnapshot(ctx context.Context, teams []roster.Team, players []roster.Player) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceDocuments(ctx, tx, teams, players); err != nil {
		return err
	}
	return tx.Commit()
}

func (g *Gateway) UpdateSetting(ctx context.Context, key store.Setting, value string) error {
	if _, err := g.db.ExecContext(ctx, upsertSetting, string(key), value); err != nil {
		return fmt.Errorf("updating setting %s: %w", key, err)
	}
	return nil
}

func (g *Gateway) Reset(ctx context.Context, teams []roster.Team, players []roster.Player) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceDocuments(ctx, tx, teams, players); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsertSetting, string(store.SettingStatus), "PAUSED"); err != nil {
		return fmt.Errorf("resetting status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertSetting, string(store.SettingMyTeamID), ""); err != nil {
		return fmt.Errorf("resetting my team: %w", err)
	}
	return tx.Commit()
}

func loadDocuments(ctx context.Context, db *sql.DB, table string, fn func([]byte) error) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY position ASC`, table))
	if err != nil {
		return fmt.Errorf("loading %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scanning %s: %w", table, err)
		}
		if err := fn([]byte(doc)); err != nil {
			return fmt.Errorf("decoding %s: %w", table, err)
		}
	}
	return rows.Err()
}

func replaceDocuments(ctx context.Context, tx *sql.Tx, teams []roster.Team, players []roster.Player) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM teams`); err != nil {
		return fmt.Errorf("clearing teams: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM players`); err != nil {
		return fmt.Errorf("clearing players: %w", err)
	}
	for i, t := range teams {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding team %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO teams (id, position, doc) VALUES (?, ?, ?)`, t.ID, i, string(doc)); err != nil {
			return fmt.Errorf("inserting team %s: %w", t.ID, err)
		}
	}
	for i, p := range players {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding player %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO players (id, position, doc) VALUES (?, ?, ?)`, p.ID, i, string(doc)); err != nil {
			return fmt.Errorf("inserting player %s: %w", p.ID, err)
		}
	}
	return nil
}
