// driver/sqlite/sqlite.go

// Package sqlite wires SQLite into the store via mattn/go-sqlite3.
// Importing it registers the "sqlite3" dialect.
package sqlite

import (
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/store"
)

// DriverName is the database/sql driver name registered by go-sqlite3.
const DriverName = "sqlite3"

func init() {
	store.RegisterDialect(DriverName, Dialect{})
}

// Dialect quotes identifiers with double quotes and uses "?"
// placeholders.
type Dialect struct{}

func (Dialect) Name() string                   { return DriverName }
func (Dialect) Quote(identifier string) string { return `"` + identifier + `"` }
func (Dialect) BindVar(int) string             { return "?" }

var _ store.Dialect = Dialect{}

// Config holds SQLite connection parameters. Path is a filesystem path
// or ":memory:" for an in-memory database.
type Config struct {
	Path   string            `mapstructure:"path" json:"path" yaml:"path"`
	Params map[string]string `mapstructure:"params" json:"params" yaml:"params"`
}

// DSN renders the config as a go-sqlite3 connection string. Foreign key
// enforcement is enabled unless the config overrides it; SQLite ships
// with it off.
func (c Config) DSN() string {
	params := make(map[string]string, len(c.Params)+1)
	for k, v := range c.Params {
		params[k] = v
	}
	if _, ok := params["_foreign_keys"]; !ok {
		params["_foreign_keys"] = "on"
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return c.Path + "?" + q.Encode()
}

// Open opens a SQLite-backed store.
func Open(cfg Config, dispatcher *bulkhooks.Dispatcher) (*store.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	return store.Open(DriverName, cfg.DSN(), dispatcher)
}
