package storage

import (
	"context"
	"fmt"
	"log/slog"

	"medconnect/client/internal/config"
	"medconnect/client/internal/security"
	"medconnect/client/internal/storage/postgres"
	"medconnect/client/internal/storage/sqlite"
)

// Open builds the Store selected by cfg.StoreDriver. When cfg.StorePassphrase is set the
// store is wrapped in Sealed with a key derived from the passphrase.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		s   Store
		err error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		s = NewMemoryStore()
	case config.StoreDriverSQLite:
		var ls *sqlite.Store
		if ls, err = sqlite.Open(cfg.StorePath); err == nil {
			s = ls
		}
	case config.StoreDriverPostgres:
		var ps *postgres.Store
		if ps, err = postgres.Open(ctx, cfg.DatabaseURL); err == nil {
			s = ps
		}
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.StoreDriver, err)
	}
	logger.Info("persisted store opened", "component", "storage", "driver", cfg.StoreDriver)

	if cfg.StorePassphrase == "" {
		return s, nil
	}
	key, err := security.DeriveStoreKey(cfg.StorePassphrase)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	sealed, err := NewSealed(s, key)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return sealed, nil
}
