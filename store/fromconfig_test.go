// store/fromconfig_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/pkg/config"
)

func newConfiguredStore(t *testing.T, cfg config.Config) (*DB, sqlmock.Sqlmock, *bulkhooks.Registry) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	reg := bulkhooks.NewRegistry()
	dispatcher := bulkhooks.NewDispatcher(reg, nil, TxManager{})
	db := NewFromConfig(sqlDB, cfg, dispatcher)
	return db, mock, reg
}

func TestNewFromConfigAppliesPoolLimits(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Database.Pool.MaxOpenConns = 7
	cfg.Database.Pool.MaxIdleConns = 3
	cfg.Database.Pool.ConnMaxLifetime = 30 * time.Minute

	db, _, _ := newConfiguredStore(t, cfg)
	assert.Equal(t, 7, db.sqlDB.Stats().MaxOpenConnections)
}

func TestConfigDisablesAfterHookDeferral(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Hooks.DeferAfterHooks = false

	db, mock, reg := newConfiguredStore(t, cfg)

	fired := false
	require.NoError(t, reg.Register(storeAccount{}, bulkhooks.AfterCreate, bulkhooks.Registration{
		Handler: "T", Method: "M",
		Func: func(context.Context, *bulkhooks.Batch) error {
			fired = true
			return nil
		},
	}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO store_accounts (id, name, balance, status) VALUES (?, ?, ?, ?)").
		WithArgs(int64(1), "a", 0.0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		if err := db.BulkCreate(ctx, []any{&storeAccount{ID: 1, Name: "a"}}); err != nil {
			return err
		}
		assert.True(t, fired, "with deferral disabled, after_create runs inline inside the transaction")
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigKeepsDeferralByDefault(t *testing.T) {
	db, mock, reg := newConfiguredStore(t, config.NewDefaultConfig())

	fired := false
	require.NoError(t, reg.Register(storeAccount{}, bulkhooks.AfterCreate, bulkhooks.Registration{
		Handler: "T", Method: "M",
		Func: func(context.Context, *bulkhooks.Batch) error {
			fired = true
			return nil
		},
	}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO store_accounts (id, name, balance, status) VALUES (?, ?, ?, ?)").
		WithArgs(int64(1), "a", 0.0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		if err := db.BulkCreate(ctx, []any{&storeAccount{ID: 1, Name: "a"}}); err != nil {
			return err
		}
		assert.False(t, fired, "default config keeps after_create deferred to commit")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, fired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenFromConfigRejectsMongo(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Database.Driver = "mongodb"
	cfg.Database.DSN = "mongodb://localhost:27017"

	_, err := OpenFromConfig(cfg, nil)
	assert.Error(t, err)
}
