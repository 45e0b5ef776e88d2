package scanlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS recent_scans (
	scan_id     TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	scanned_at  TEXT NOT NULL
);
`

// SQLite stores the recent-scan list in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns the stored timestamps, most recent first.
func (s *SQLite) Load(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scanned_at FROM recent_scans ORDER BY position ASC LIMIT ?`, Capacity)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse scanned_at: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Save replaces the stored list.
func (s *SQLite) Save(ctx context.Context, recent []time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recent_scans`); err != nil {
		return fmt.Errorf("clear recent: %w", err)
	}
	for i, ts := range recent {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recent_scans (scan_id, position, scanned_at) VALUES (?, ?, ?)`,
			uuid.New().String(), i, ts.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert recent: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
