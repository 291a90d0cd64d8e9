// Package store persists the latest value of every sample series in SQLite
// so the status API can answer without waiting for a poll cycle.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Migration is one schema change for a component. Versions are applied in
// ascending order and recorded so each runs once.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// SQLiteStore keeps the latest sample of every series. It holds no history.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes Migrate
}

// pragmas are executed on open; modernc.org/sqlite takes them as statements
// rather than DSN parameters.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA cache_size=-8000",
}

// New opens (or creates) the database at path and migrates the sample
// schema. ":memory:" gives a throwaway store.
func New(path string) (*SQLiteStore, error) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: writes are serialized and ":memory:" stays a single
	// database.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %q: %s: %w", path, p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx, componentName, sampleMigrations()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying *sql.DB.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Tx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Migrate applies the migrations of component that have not run yet.
func (s *SQLiteStore) Migrate(ctx context.Context, component string, migrations []Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			component   TEXT     NOT NULL,
			version     INTEGER  NOT NULL,
			description TEXT     NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (component, version)
		)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	applied, err := s.appliedVersions(ctx, component)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO _migrations (component, version, description) VALUES (?, ?, ?)",
				component, m.Version, m.Description,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
		applied[m.Version] = true
	}
	return nil
}

func (s *SQLiteStore) appliedVersions(ctx context.Context, component string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations WHERE component = ?", component)
	if err != nil {
		return nil, fmt.Errorf("list migrations of %s: %w", component, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
