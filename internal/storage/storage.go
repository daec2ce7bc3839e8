// Package storage provides SQLite-backed persistence for run and alert history.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ct-trading/moverwatch/internal/models"
)

// Storage wraps a SQLite database holding the run audit trail. The ledger
// file stays the source of truth for suppression; this history exists for the
// daily-reset decision and for inspecting what was alerted when.
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/moverwatch/history.db.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "moverwatch", "history.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxRuns: maxRuns}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			session     TEXT NOT NULL,
			mover_count INTEGER NOT NULL,
			delivered   INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_alerts (
			run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			symbol      TEXT NOT NULL,
			pct_change  REAL NOT NULL,
			price       REAL NOT NULL,
			strength    TEXT NOT NULL,
			detected_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_run_alerts_run_id ON run_alerts(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun inserts a run and its alerts in one transaction and prunes
// history beyond maxRuns.
func (s *Storage) RecordRun(run models.RunRecord, alerts []models.AlertRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO runs (id, session, mover_count, delivered, created_at)
		VALUES (?,?,?,?,?)`,
		run.ID, run.Session.String(), run.MoverCount, boolToInt(run.Delivered),
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, a := range alerts {
		_, err = tx.Exec(`
			INSERT INTO run_alerts (run_id, symbol, pct_change, price, strength, detected_at)
			VALUES (?,?,?,?,?,?)`,
			run.ID, a.Symbol, a.PctChange, a.Price, string(a.Strength),
			a.DetectedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert for %s: %w", a.Symbol, err)
		}
	}

	if _, err = tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
		)`, s.maxRuns); err != nil {
		return fmt.Errorf("failed to prune run history: %w", err)
	}

	return tx.Commit()
}

// LastRunTime returns the timestamp of the most recent recorded run. The
// boolean is false when no run has been recorded yet.
func (s *Storage) LastRunTime() (time.Time, bool, error) {
	row := s.db.QueryRow(`SELECT created_at FROM runs ORDER BY created_at DESC LIMIT 1`)
	var createdAtNano int64
	err := row.Scan(&createdAtNano)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last run: %w", err)
	}
	return time.Unix(0, createdAtNano), true, nil
}

// RecentAlerts returns the most recently detected alerts, newest first.
func (s *Storage) RecentAlerts(limit int) ([]models.AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, symbol, pct_change, price, strength, detected_at
		FROM run_alerts ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		var strength string
		var detectedAtNano int64
		if err := rows.Scan(&a.RunID, &a.Symbol, &a.PctChange, &a.Price, &strength, &detectedAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Strength = models.Strength(strength)
		a.DetectedAt = time.Unix(0, detectedAtNano)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
