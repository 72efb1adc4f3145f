// Package localstore persists the client's catch-up cursor and its last
// known tiles in a local sqlite file, so a restarted client resumes from
// where it stopped instead of replaying the whole feed.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"hexcolony/internal/domain/territory"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open creates the file and schema if needed. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS cursors (
			viewer TEXT PRIMARY KEY,
			ts INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tiles (
			viewer TEXT NOT NULL,
			id TEXT NOT NULL,
			record TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (viewer, id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Cursor returns the newest event timestamp the viewer has applied, or 0.
func (s *Store) Cursor(ctx context.Context, viewer string) (int64, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT ts FROM cursors WHERE viewer = ?`, viewer).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return ts, err
}

// AdvanceCursor never moves the cursor backwards.
func (s *Store) AdvanceCursor(ctx context.Context, viewer string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (viewer, ts) VALUES (?, ?)
		ON CONFLICT(viewer) DO UPDATE SET ts = MAX(cursors.ts, excluded.ts)`,
		viewer, ts)
	return err
}

// ReplaceTiles swaps the viewer's cached tiles for tiles in one
// transaction.
func (s *Store) ReplaceTiles(ctx context.Context, viewer string, tiles []territory.TileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tiles WHERE viewer = ?`, viewer); err != nil {
		return err
	}
	if err := upsertTiles(ctx, tx, viewer, tiles); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SaveTiles(ctx context.Context, viewer string, tiles []territory.TileRecord) error {
	if len(tiles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertTiles(ctx, tx, viewer, tiles); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertTiles(ctx context.Context, tx *sql.Tx, viewer string, tiles []territory.TileRecord) error {
	if len(tiles) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tiles (viewer, id, record, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(viewer, id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tiles {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, viewer, string(t.ID), string(b), t.UpdatedAt.UnixMilli()); err != nil {
			return err
		}
	}
	return nil
}

// LoadTiles returns the viewer's cached tiles ordered by id.
func (s *Store) LoadTiles(ctx context.Context, viewer string) ([]territory.TileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM tiles WHERE viewer = ? ORDER BY id`, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []territory.TileRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t territory.TileRecord
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("cached tile: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
