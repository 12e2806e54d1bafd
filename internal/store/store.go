// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists finished search sessions to a local SQLite
// database so a restarted client can list and reload past results. Only
// the minimal resumable shape is stored: identifying fields as columns
// plus the full snapshot as JSON.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shahabnazari/litstream/internal/reconcile"
	"github.com/shahabnazari/litstream/pkg/types"
)

// ErrNotFound is returned when no session exists for a searchId.
var ErrNotFound = errors.New("session not found")

// Store manages the session SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the session database at cfg.Path, creating parent
// directories and the schema as needed.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("session store path not configured")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			search_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			paper_count INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			time_ms INTEGER NOT NULL,
			snapshot TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save upserts one session snapshot.
func (s *Store) Save(snap reconcile.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snap.SearchID, err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions
			(search_id, query, status, stage, paper_count, started_at, time_ms, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(search_id) DO UPDATE SET
			query = excluded.query,
			status = excluded.status,
			stage = excluded.stage,
			paper_count = excluded.paper_count,
			time_ms = excluded.time_ms,
			snapshot = excluded.snapshot`,
		snap.SearchID, snap.Query, string(snap.Status), string(snap.Stage),
		len(snap.Papers), snap.StartedAt.UTC().Format(time.RFC3339), snap.FinalTimeMs, string(blob))
	if err != nil {
		return fmt.Errorf("saving session %s: %w", snap.SearchID, err)
	}
	return nil
}

// Summary is one row of the session listing.
type Summary struct {
	SearchID   string
	Query      string
	Status     types.SessionStatus
	Stage      types.Stage
	PaperCount int
	StartedAt  time.Time
	TimeMs     int64
}

// List returns summaries of all stored sessions, most recent first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`SELECT search_id, query, status, stage, paper_count, started_at, time_ms
		FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var status, stage, startedAt string
		if err := rows.Scan(&sum.SearchID, &sum.Query, &status, &stage,
			&sum.PaperCount, &startedAt, &sum.TimeMs); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sum.Status = types.SessionStatus(status)
		sum.Stage = types.Stage(stage)
		if t, perr := time.Parse(time.RFC3339, startedAt); perr == nil {
			sum.StartedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads one stored snapshot by searchId.
func (s *Store) Get(searchID string) (reconcile.Snapshot, error) {
	var blob string
	err := s.db.QueryRow(`SELECT snapshot FROM sessions WHERE search_id = ?`, searchID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, searchID)
	}
	if err != nil {
		return reconcile.Snapshot{}, fmt.Errorf("loading session %s: %w", searchID, err)
	}
	var snap reconcile.Snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return reconcile.Snapshot{}, fmt.Errorf("decoding session %s: %w", searchID, err)
	}
	return snap, nil
}

// Delete removes one stored session. Missing rows are not an error.
func (s *Store) Delete(searchID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE search_id = ?`, searchID); err != nil {
		return fmt.Errorf("deleting session %s: %w", searchID, err)
	}
	return nil
}
