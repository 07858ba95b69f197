package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/models"
	_ "modernc.org/sqlite"
)

// Store persists batch results in SQLite with WAL mode so the history can be
// read by the status endpoints while a migration is writing to it.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			succeeded INTEGER NOT NULL,
			total INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sku_results (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			sku TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT,
			local_paths TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			PRIMARY KEY (batch_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_sku_results_sku ON sku_results(sku);
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create tables", Err: err}
	}
	return nil
}

// SaveBatch writes a finished batch and its per-SKU results in one
// transaction.
func (s *Store) SaveBatch(b *models.BatchResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin save batch", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO batches (id, started_at, finished_at, succeeded, total) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.StartedAt.UTC(), b.FinishedAt.UTC(), b.Succeeded, b.Total,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "insert batch", Err: err}
	}

	for i, r := range b.Results {
		paths, err := json.Marshal(r.LocalPaths)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO sku_results (batch_id, position, sku, outcome, error, local_paths, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, i, r.SKU, string(r.Outcome), r.Error, string(paths), r.StartedAt.UTC(), r.FinishedAt.UTC(),
		)
		if err != nil {
			return &errors.ErrDatabaseQuery{Operation: "insert sku result", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit save batch", Err: err}
	}
	return nil
}

// GetBatch loads one batch with its results, or nil when absent.
func (s *Store) GetBatch(id string) (*models.BatchResult, error) {
	row := s.db.QueryRow(`SELECT id, started_at, finished_at, succeeded, total FROM batches WHERE id = ?`, id)

	var b models.BatchResult
	if err := row.Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.Succeeded, &b.Total); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &errors.ErrDatabaseQuery{Operation: "get batch", Err: err}
	}

	rows, err := s.db.Query(
		`SELECT sku, outcome, error, local_paths, started_at, finished_at
		 FROM sku_results WHERE batch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get batch results", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var r models.SKUResult
		var errText, paths sql.NullString
		if err := rows.Scan(&r.SKU, &r.Outcome, &errText, &paths, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan sku result", Err: err}
		}
		r.Error = errText.String
		if paths.Valid && paths.String != "" {
			if err := json.Unmarshal([]byte(paths.String), &r.LocalPaths); err != nil {
				return nil, err
			}
		}
		b.Results = append(b.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "iterate sku results", Err: err}
	}

	return &b, nil
}

// BatchSummary is a history listing row.
type BatchSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Total      int       `json:"total"`
}

// ListBatches returns the most recent batches, newest first.
func (s *Store) ListBatches(limit int) ([]BatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, succeeded, total
		 FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list batches", Err: err}
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.Succeeded, &b.Total); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan batch", Err: err}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LatestBatch returns the most recent batch with its results, or nil.
func (s *Store) LatestBatch() (*models.BatchResult, error) {
	row := s.db.QueryRow(`SELECT id FROM batches ORDER BY started_at DESC LIMIT 1`)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &errors.ErrDatabaseQuery{Operation: "latest batch", Err: err}
	}
	return s.GetBatch(id)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
