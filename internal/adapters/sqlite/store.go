// Package sqlite persists checkpoints in a local SQLite database, one table per workflow namespace.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/lectern/internal/adapters/sqlstore"
	"github.com/aretw0/lectern/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

// DB is an open SQLite database hosting any number of namespaced stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		path = filepath.Join(".lectern", "lectern.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, q := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	} {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Store returns the checkpoint store for a namespace, creating its table if needed.
func (d *DB) Store(ctx context.Context, namespace string) (*Store, error) {
	table, err := sqlstore.TableName(namespace)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		session_id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		version INTEGER NOT NULL,
		saved_at TEXT NOT NULL,
		state TEXT NOT NULL
	);`, table)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("init checkpoint table %s: %w", table, err)
	}
	return &Store{db: d.db, table: table}, nil
}

// Store implements ports.StateStore on one SQLite table.
type Store struct {
	db    *sql.DB
	table string
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, sessionID string, record *domain.Checkpoint) error {
	row, err := sqlstore.ToRow(sessionID, record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (session_id, workflow, version, saved_at, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			workflow=excluded.workflow,
			version=excluded.version,
			saved_at=excluded.saved_at,
			state=excluded.state`, s.table),
		row.SessionID, row.Workflow, row.Version, row.SavedAt, row.State)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load reads the record.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	row := sqlstore.Row{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT workflow, version, saved_at, state FROM %s WHERE session_id = ?`, s.table),
		sessionID,
	).Scan(&row.Workflow, &row.Version, &row.SavedAt, &row.State)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return sqlstore.FromRow(row)
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, s.table), sessionID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List returns stored session ids in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT session_id FROM %s ORDER BY session_id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
