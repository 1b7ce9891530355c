package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/parent-watch/internal/alert"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional pool sizing.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	subject         TEXT NOT NULL,
	zone            TEXT NOT NULL,
	expected_zone   TEXT NOT NULL,
	distance_meters DOUBLE PRECISION NOT NULL,
	message         TEXT NOT NULL,
	raised_at       TIMESTAMPTZ NOT NULL,
	cleared_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_alerts_subject ON alerts(subject);
CREATE INDEX IF NOT EXISTS idx_alerts_open ON alerts(subject) WHERE cleared_at IS NULL;
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// RecordRaised implements Store. Closing the previous alert and inserting
// the new one happen in a single statement.
func (s *PostgresStore) RecordRaised(ctx context.Context, a alert.Alert, message string) error {
	_, err := s.pool.Exec(ctx, `
		WITH closed AS (
			UPDATE alerts SET cleared_at = $7 WHERE subject = $2 AND cleared_at IS NULL
		)
		INSERT INTO alerts (id, subject, zone, expected_zone, distance_meters, message, raised_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Subject, a.Zone, a.ExpectedZone, a.DistanceMeters, message, a.RaisedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert alert %s", a.ID)
}

// RecordCleared implements Store.
func (s *PostgresStore) RecordCleared(ctx context.Context, subject string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE alerts SET cleared_at = $1 WHERE subject = $2 AND cleared_at IS NULL`,
		at.UTC(), subject,
	)
	return eris.Wrapf(err, "postgres: clear alerts for %s", subject)
}

// ListAlerts implements Store. Newest alerts come first.
func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error) {
	query := `SELECT id, subject, zone, expected_zone, distance_meters, message, raised_at, cleared_at FROM alerts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Subject != "" {
		query += fmt.Sprintf(` AND subject = $%d`, argIdx)
		args = append(args, filter.Subject)
		argIdx++
	}
	if filter.ActiveOnly {
		query += ` AND cleared_at IS NULL`
	}
	query += fmt.Sprintf(` ORDER BY raised_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alerts")
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var r AlertRecord
		if err := rows.Scan(&r.ID, &r.Subject, &r.Zone, &r.ExpectedZone, &r.DistanceMeters, &r.Message, &r.RaisedAt, &r.ClearedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list alerts iterate")
}
