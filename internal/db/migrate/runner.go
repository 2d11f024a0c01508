// Package migrate applies the embedded Postgres persisted-store schema using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"medconnect/client/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// ErrNoChange is returned by migrate when already at the target version. Run swallows it.
var ErrNoChange = migrate.ErrNoChange

// ErrMissingDSN is returned when no DSN is configured.
var ErrMissingDSN = errors.New("DATABASE_URL is not set; set it or use STORE_DRIVER=sqlite")

// Run migrates the kv_entries schema at dsn in the given direction.
func Run(dsn string, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return ErrMissingDSN
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
