// Package storage persists completed analysis runs to SQLite so past
// graphs and validation summaries can be listed, reloaded, and diffed.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/perfsleuth/perfsleuth/internal/pipeline"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

// ErrRunNotFound is returned when a run ID has no stored row.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored run, metadata only. The full result is
// loaded separately via LoadRun.
type RunRecord struct {
	RunID     string            `json:"runId"`
	URL       string            `json:"url"`
	Device    types.DeviceClass `json:"device"`
	CreatedAt time.Time         `json:"createdAt"`
	Findings  int               `json:"findings"`
	Approved  int               `json:"approved"`
	Blocked   int               `json:"blocked"`
}

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	device     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	findings   INTEGER NOT NULL,
	approved   INTEGER NOT NULL,
	blocked    INTEGER NOT NULL,
	result     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url, created_at);
`

// Open creates (or opens) the archive at path and initializes the
// schema. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	db, err := driver.Open("file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives a completed run. The full result is stored as JSON
// alongside denormalized columns for cheap listing.
func (s *Store) SaveRun(ctx context.Context, url string, device types.DeviceClass, result *pipeline.RunResult) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding run result: %w", err)
	}
	findings := 0
	if result.Dedup != nil {
		findings = len(result.Dedup.Findings)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, url, device, created_at, findings, approved, blocked, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, url, string(device), time.Now().UTC(),
		findings, len(result.Approved), len(result.Blocked), string(blob))
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}
	return nil
}

// ListRuns returns run metadata, newest first, optionally filtered by
// URL. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, url string, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, url, device, created_at, findings, approved, blocked FROM runs`
	args := []any{}
	if url != "" {
		query += ` WHERE url = ?`
		args = append(args, url)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var device string
		if err := rows.Scan(&r.RunID, &r.URL, &device, &r.CreatedAt, &r.Findings, &r.Approved, &r.Blocked); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.Device = types.DeviceClass(device)
		records = append(records, r)
	}
	return records, rows.Err()
}

// LoadRun reloads the full stored result for one run ID.
func (s *Store) LoadRun(ctx context.Context, runID string) (*pipeline.RunResult, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	var result pipeline.RunResult
	if err := json.Unmarshal([]byte(blob), &result); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &result, nil
}

// DeleteRun removes one archived run.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
