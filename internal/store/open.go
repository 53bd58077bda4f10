package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cristianadrielbraun/qrlinks/internal/config"
	"github.com/cristianadrielbraun/qrlinks/internal/logging"
)

// Open picks the backend named in cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		logging.Info("Using Postgres store")
		return s, nil
	case "sqlite":
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logging.Info("Using SQLite store", "path", cfg.SQLitePath)
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
