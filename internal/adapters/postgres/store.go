// Package postgres persists checkpoints in PostgreSQL, one table per workflow namespace.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lectern/internal/adapters/sqlstore"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is a connection pool hosting any number of namespaced stores.
type DB struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for databaseURL.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Store returns the checkpoint store for a namespace, creating its table if needed.
// State is kept as json rather than jsonb so numbers keep their exact text.
func (d *DB) Store(ctx context.Context, namespace string) (*Store, error) {
	table, err := sqlstore.TableName(namespace)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			version INTEGER NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL,
			state JSON NOT NULL
		);`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_saved_at ON %s (saved_at DESC);`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init checkpoint schema failed on %q: %w", stmt, err)
		}
	}
	return &Store{pool: d.pool, table: table}, nil
}

// Store implements ports.StateStore on one PostgreSQL table.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, sessionID string, record *domain.Checkpoint) error {
	row, err := sqlstore.ToRow(sessionID, record)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (session_id, workflow, version, saved_at, state)
		VALUES ($1, $2, $3, $4, $5::json)
		ON CONFLICT (session_id) DO UPDATE SET
			workflow=EXCLUDED.workflow,
			version=EXCLUDED.version,
			saved_at=EXCLUDED.saved_at,
			state=EXCLUDED.state`, s.table),
		row.SessionID, row.Workflow, row.Version, record.SavedAt.UTC(), row.State)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load reads the record.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	row := sqlstore.Row{SessionID: sessionID}
	var savedAt time.Time
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT workflow, version, saved_at, state::text FROM %s WHERE session_id = $1`, s.table),
		sessionID,
	).Scan(&row.Workflow, &row.Version, &savedAt, &row.State)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	row.SavedAt = savedAt.UTC().Format(time.RFC3339Nano)
	return sqlstore.FromRow(row)
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, s.table), sessionID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List returns stored session ids in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT session_id FROM %s ORDER BY session_id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan session ids: %w", err)
	}
	if sessions == nil {
		sessions = []string{}
	}
	return sessions, nil
}
