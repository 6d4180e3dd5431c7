// store/fromconfig.go
package store

import (
	"database/sql"
	"errors"
	"fmt"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/pkg/config"
)

// NewFromConfig wraps an existing pool and applies the loaded
// configuration: pool limits, the configured structured logger on both
// the store and the dispatcher, and the after-hook deferral toggle.
func NewFromConfig(sqlDB *sql.DB, cfg config.Config, dispatcher *bulkhooks.Dispatcher) *DB {
	sqlDB.SetMaxIdleConns(cfg.Database.Pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.Pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.Pool.ConnMaxLifetime)

	dialect, _ := GetDialect(cfg.Database.Driver)
	db := New(sqlDB, dialect, dispatcher)

	logger := cfg.Logging.Build(nil)
	db.SetLogger(logger)
	db.dispatcher.SetLogger(logger)
	db.dispatcher.SetDeferAfterHooks(cfg.Hooks.DeferAfterHooks)
	return db
}

// OpenFromConfig opens the configured database and wraps it via
// NewFromConfig. The matching driver package must be imported for its
// init registration; mongodb is served by the driver/mongo package and
// is rejected here.
func OpenFromConfig(cfg config.Config, dispatcher *bulkhooks.Dispatcher) (*DB, error) {
	if cfg.Database.Driver == "mongodb" {
		return nil, errors.New("store: mongodb is not a database/sql driver, open it with the mongo driver package")
	}
	sqlDB, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Database.Driver, err)
	}
	return NewFromConfig(sqlDB, cfg, dispatcher), nil
}
