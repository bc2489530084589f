// Package storage persists upload metadata in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"findash/internal/core"
	"findash/internal/log"
	ports "findash/internal/sheets"
)

// timeLayout sorts lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository is the SQLite-backed upload journal.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var (
	_ ports.UploadJournal = (*SQLiteRepository)(nil)
	_ ports.JournalLister = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	logger = logger.WithComponent(log.ComponentStorage)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// single writer avoids SQLITE_BUSY between concurrent requests
	db.SetMaxOpenConns(1)

	logger.Info("Upload journal ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable; used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record implements sheets.UploadJournal. Recording the same upload ID twice
// is a no-op, so redelivered events are harmless.
func (r *SQLiteRepository) Record(ctx context.Context, rec core.UploadRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO uploads (
    id, session_id, source, filename, fingerprint, outcome, reason, message,
    net_worth_rows, income_rows, expense_rows, budget_rows, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Source, rec.Filename, rec.Fingerprint, rec.Outcome, rec.Reason, rec.Message,
		rec.Counts.NetWorth, rec.Counts.Income, rec.Counts.Expenses, rec.Counts.Budget,
		rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert upload %s: %w", rec.ID, err)
	}
	r.logger.DebugContext(ctx, "Upload recorded", log.FieldUploadID, rec.ID, log.FieldOutcome, rec.Outcome)
	return nil
}

// Recent implements sheets.JournalLister.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]core.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, source, filename, fingerprint, outcome, reason, message,
       net_worth_rows, income_rows, expense_rows, budget_rows, created_at
FROM uploads
ORDER BY created_at DESC, id
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []core.UploadRecord
	for rows.Next() {
		var (
			rec     core.UploadRecord
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Source, &rec.Filename, &rec.Fingerprint,
			&rec.Outcome, &rec.Reason, &rec.Message,
			&rec.Counts.NetWorth, &rec.Counts.Income, &rec.Counts.Expenses, &rec.Counts.Budget,
			&created); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		rec.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
