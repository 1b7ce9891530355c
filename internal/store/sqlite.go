package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/parent-watch/internal/alert"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	subject         TEXT NOT NULL,
	zone            TEXT NOT NULL,
	expected_zone   TEXT NOT NULL,
	distance_meters REAL NOT NULL,
	message         TEXT NOT NULL,
	raised_at       DATETIME NOT NULL,
	cleared_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_alerts_subject ON alerts(subject);
CREATE INDEX IF NOT EXISTS idx_alerts_raised_at ON alerts(raised_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRaised implements Store.
func (s *SQLiteStore) RecordRaised(ctx context.Context, a alert.Alert, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	raisedAt := a.RaisedAt.UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE alerts SET cleared_at = ? WHERE subject = ? AND cleared_at IS NULL`,
		raisedAt, a.Subject,
	); err != nil {
		return eris.Wrapf(err, "sqlite: close open alerts for %s", a.Subject)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO alerts (id, subject, zone, expected_zone, distance_meters, message, raised_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Subject, a.Zone, a.ExpectedZone, a.DistanceMeters, message, raisedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert alert %s", a.ID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// RecordCleared implements Store.
func (s *SQLiteStore) RecordCleared(ctx context.Context, subject string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET cleared_at = ? WHERE subject = ? AND cleared_at IS NULL`,
		at.UTC(), subject,
	)
	return eris.Wrapf(err, "sqlite: clear alerts for %s", subject)
}

// ListAlerts implements Store. Newest alerts come first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error) {
	query := `SELECT id, subject, zone, expected_zone, distance_meters, message, raised_at, cleared_at FROM alerts WHERE 1=1`
	var args []any
	if filter.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, filter.Subject)
	}
	if filter.ActiveOnly {
		query += ` AND cleared_at IS NULL`
	}
	query += ` ORDER BY raised_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alerts")
	}
	defer rows.Close() //nolint:errcheck

	var out []AlertRecord
	for rows.Next() {
		var r AlertRecord
		var cleared sql.NullTime
		if err := rows.Scan(&r.ID, &r.Subject, &r.Zone, &r.ExpectedZone, &r.DistanceMeters, &r.Message, &r.RaisedAt, &cleared); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert")
		}
		if cleared.Valid {
			t := cleared.Time
			r.ClearedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list alerts iterate")
}

func listLimit(f AlertFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
