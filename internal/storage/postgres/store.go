// Package postgres provides a persisted store in a shared Postgres kv_entries table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"medconnect/client/internal/db"
	"medconnect/client/internal/db/migrate"
)

// Store is a persisted key/value store backed by Postgres.
type Store struct {
	db *sql.DB
}

// New returns a Store using an open connection. The kv_entries table must exist.
func New(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

// Open applies pending migrations and opens a Store for dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := migrate.Run(dsn, "up"); err != nil {
		return nil, err
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	return New(sqlDB), nil
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, errors.New("key is required")
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("key is required")
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, k); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Close closes the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PingContext verifies the connection.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
