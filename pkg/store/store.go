// Package store persists extraction runs and their results in SQLite, so
// successive runs of the same portfolio can be compared and failed records
// re-queued without re-running the whole batch.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"taxharvest/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	summary     TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS results (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	property_id    TEXT NOT NULL,
	property_name  TEXT NOT NULL DEFAULT '',
	jurisdiction   TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	method         TEXT NOT NULL DEFAULT '',
	attempts       INTEGER NOT NULL DEFAULT 0,
	extracted_data TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_property ON results(property_id);
`

// Store wraps the results database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun records a finished batch with all of its results and returns the
// run id.
func (s *Store) SaveRun(summary models.Summary, summaryJSON string, results []models.ExtractionResult) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO runs (started_at, finished_at, summary) VALUES (?, ?, ?)",
		summary.StartedAt, summary.FinishedAt, summaryJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO results
		(run_id, property_id, property_name, jurisdiction, status, method, attempts, extracted_data, error, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.Exec(
			runID, r.PropertyID, r.PropertyName, r.Jurisdiction,
			string(r.Status), r.Method, r.Attempts,
			r.FieldsJSON(), r.Error, r.Notes, r.Timestamp,
		); err != nil {
			return 0, fmt.Errorf("inserting result for %s: %w", r.PropertyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// RunInfo is one row of run history.
type RunInfo struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    string
}

// Runs lists saved runs, newest first.
func (s *Store) Runs(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT id, started_at, finished_at, summary FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Summary); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FailedProperties returns the property ids that failed in a run, for
// re-queuing.
func (s *Store) FailedProperties(runID int64) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT property_id FROM results WHERE run_id = ? AND status IN (?, ?) ORDER BY id",
		runID, string(models.StatusFailed), string(models.StatusRequiresManual))
	if err != nil {
		return nil, fmt.Errorf("listing failed properties: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning property id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StatusHistory returns the statuses a property has seen across runs,
// newest first.
func (s *Store) StatusHistory(propertyID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		"SELECT status FROM results WHERE property_id = ? ORDER BY id DESC LIMIT ?",
		propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading status history: %w", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}
