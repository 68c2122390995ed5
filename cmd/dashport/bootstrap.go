package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/config"
	"github.com/persistorai/dashport/internal/db"
	"github.com/persistorai/dashport/internal/db/migrations"
	"github.com/persistorai/dashport/internal/dbpool"
	"github.com/persistorai/dashport/internal/filterbox"
	"github.com/persistorai/dashport/internal/service"
	"github.com/persistorai/dashport/internal/store"
)

// openPool connects to the configured database.
func openPool(ctx context.Context, cfg *config.Config) (*dbpool.Pool, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

// migrate applies pending schema migrations.
func migrate(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) (int, error) {
	n, err := db.RunMigrations(ctx, pool, log, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}

	return n, nil
}

// newImportService wires the store, the filter-box migrator and the service.
func newImportService(pool *dbpool.Pool, log *logrus.Logger) *service.ImportService {
	st := store.NewImportStore(store.Base{Pool: pool, Log: log})

	return service.NewImportService(st, filterbox.NewMigrator(log), log)
}
