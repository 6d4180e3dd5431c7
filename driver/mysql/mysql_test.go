// driver/mysql/mysql_test.go
package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/bulkhooks/store"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		Username: "root",
		Password: "secret",
		Database: "shop",
	}
	assert.Equal(t, "root:secret@tcp(localhost:3306)/shop?charset=utf8mb4&parseTime=true", cfg.DSN())
}

func TestDSNWithParams(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     3307,
		Username: "app",
		Database: "shop",
		Params:   map[string]string{"charset": "latin1", "collation": "latin1_general_ci"},
	}
	assert.Equal(t,
		"app@tcp(db.internal:3307)/shop?charset=latin1&collation=latin1_general_ci&parseTime=true",
		cfg.DSN())
}

func TestDialectRegistered(t *testing.T) {
	d, ok := store.GetDialect(DriverName)
	require.True(t, ok)
	assert.Equal(t, "`balance`", d.Quote("balance"))
	assert.Equal(t, "?", d.BindVar(2))
}

func TestOpenRequiresCredentials(t *testing.T) {
	_, err := Open(Config{Database: "shop"}, nil)
	assert.Error(t, err)
	_, err = Open(Config{Username: "app"}, nil)
	assert.Error(t, err)
}
