package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/store"
)

// Gateway implements store.Gateway with one JSONB row per document.
type Gateway struct {
	db *sqlx.DB
}

// NewGateway returns a new Gateway.
func NewGateway(db *sqlx.DB) *Gateway {
	return &Gateway{db: db}
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (g *Gateway) LoadSnapshot(ctx context.Context) (*store.Snapshot, error) {
	var settings []settingRow
	if err := g.db.SelectContext(ctx, &settings, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	var teamDocs, playerDocs [][]byte
	if err := g.db.SelectContext(ctx, &teamDocs, `SELECT doc FROM teams ORDER BY position ASC`); err != nil {
		return nil, fmt.Errorf("loading teams: %w", err)
	}
	if err := g.db.SelectContext(ctx, &playerDocs, `SELECT doc FROM players ORDER BY position ASC`); err != nil {
		return nil, fmt.Errorf("loading players: %w", err)
	}
	if len(settings) == 0 && len(teamDocs) == 0 && len(playerDocs) == 0 {
		return nil, store.ErrNotFound
	}

	snap := &store.Snapshot{
		Teams:   make([]roster.Team, 0, len(teamDocs)),
		Players: make([]roster.Player, 0, len(playerDocs)),
	}
	for _, s := range settings {
		snap.Settings.Set(store.Setting(s.Key), s.Value)
	}
	for _, doc := range teamDocs {
		var t roster.Team
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("decoding team: %w", err)
		}
		snap.Teams = append(snap.Teams, t)
	}
	for _, doc := range playerDocs {
		var p roster.Player
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decoding player: %w", err)
		}
		snap.Players = append(snap.Players, p)
	}
	return snap, nil
}

func (g *Gateway) SaveSnapshot(ctx context.Context, teams []roster.Team, players []roster.Player) error {
	tx, err := g.db.BeginTxx(ctx, nil)
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
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		string(key), value,
	)
	if err != nil {
		return fmt.Errorf("updating setting %s: %w", key, err)
	}
	return nil
}

func (g *Gateway) Reset(ctx context.Context, teams []roster.Team, players []roster.Player) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceDocuments(ctx, tx, teams, players); err != nil {
		return err
	}
	for _, s := range []settingRow{
		{Key: string(store.SettingStatus), Value: "PAUSED"},
		{Key: string(store.SettingMyTeamID), Value: ""},
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			s.Key, s.Value,
		); err != nil {
			return fmt.Errorf("resetting setting %s: %w", s.Key, err)
		}
	}
	return tx.Commit()
}

func replaceDocuments(ctx context.Context, tx *sqlx.Tx, teams []roster.Team, players []roster.Player) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM teams`); err != nil {
		return fmt.Errorf("clearing teams: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM players`); err != nil {
		return fmt.Errorf("clearing players: %w", err)
	}
	for i, t := range teams {
		if err := insertDocument(ctx, tx, "teams", t.ID, i, t); err != nil {
			return err
		}
	}
	for i, p := range players {
		if err := insertDocument(ctx, tx, "players", p.ID, i, p); err != nil {
			return err
		}
	}
	return nil
}

func insertDocument(ctx context.Context, tx *sqlx.Tx, table, id string, position int, v any) error {
	if id == "" {
		return errors.New("document without id")
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", table, id, err)
	}
	// table is one of two constants above.
	query := fmt.Sprintf(`INSERT INTO %s (id, position, doc) VALUES ($1, $2, $3)`, table)
	if _, err := tx.ExecContext(ctx, query, id, position, doc); err != nil {
		return fmt.Errorf("inserting %s %s: %w", table, id, err)
	}
	return nil
}
