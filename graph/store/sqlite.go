package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable, single-process Store[S] backed by a pure-Go
// SQLite driver. It is the Simulation Supervisor's crash-recovery store:
// a restarted supervisor can LoadLatest a run's last committed step rather
// than starting over.
//
// State values are persisted as JSON, so S must be JSON-marshalable.
type SQLiteStore[S any] struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures its schema exists. SQLite allows only one writer at a time,
// so the connection pool is capped at a single connection.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore[S]{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS steps (
			run_id  TEXT NOT NULL,
			step    INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state   TEXT NOT NULL,
			PRIMARY KEY (run_id, step)
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			step          INTEGER NOT NULL,
			state         TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: create tables: %w", err)
		}
	}
	return nil
}

// SaveStep implements store.Store.
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, step, node_id, state) VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id, step) DO UPDATE SET node_id = excluded.node_id, state = excluded.state
	`, runID, step, nodeID, string(data))
	if err != nil {
		return fmt.Errorf("store: save step: %w", err)
	}
	return nil
}

// LoadLatest implements store.Store.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `
		SELECT step, state FROM steps WHERE run_id = ? ORDER BY step DESC LIMIT 1
	`, runID)
	if scanErr := row.Scan(&step, &raw); scanErr != nil {
		var zero S
		if scanErr == sql.ErrNoRows {
			return zero, 0, ErrNotFound
		}
		return zero, 0, fmt.Errorf("store: load latest: %w", scanErr)
	}
	if unmarshalErr := json.Unmarshal([]byte(raw), &state); unmarshalErr != nil {
		var zero S
		return zero, 0, fmt.Errorf("store: unmarshal state: %w", unmarshalErr)
	}
	return state, step, nil
}

// SaveCheckpoint implements store.Store.
func (s *SQLiteStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal checkpoint state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (checkpoint_id, step, state) VALUES (?, ?, ?)
		ON CONFLICT (checkpoint_id) DO UPDATE SET step = excluded.step, state = excluded.state
	`, cpID, step, string(data))
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements store.Store.
func (s *SQLiteStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT step, state FROM checkpoints WHERE checkpoint_id = ?`, cpID)
	if scanErr := row.Scan(&step, &raw); scanErr != nil {
		var zero S
		if scanErr == sql.ErrNoRows {
			return zero, 0, ErrNotFound
		}
		return zero, 0, fmt.Errorf("store: load checkpoint: %w", scanErr)
	}
	if unmarshalErr := json.Unmarshal([]byte(raw), &state); unmarshalErr != nil {
		var zero S
		return zero, 0, fmt.Errorf("store: unmarshal checkpoint state: %w", unmarshalErr)
	}
	return state, step, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}
