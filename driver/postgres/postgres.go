// driver/postgres/postgres.go

// Package postgres wires PostgreSQL into the store via the pgx stdlib
// driver. Importing it registers the "pgx" dialect.
package postgres

import (
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/store"
)

// DriverName is the database/sql driver name registered by pgx.
const DriverName = "pgx"

func init() {
	store.RegisterDialect(DriverName, store.NumberedDialect{DriverName: DriverName})
}

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host     string            `mapstructure:"host" json:"host" yaml:"host"`
	Port     int               `mapstructure:"port" json:"port" yaml:"port"`
	Username string            `mapstructure:"username" json:"username" yaml:"username"`
	Password string            `mapstructure:"password" json:"password" yaml:"password"`
	Database string            `mapstructure:"database" json:"database" yaml:"database"`
	SSLMode  string            `mapstructure:"sslmode" json:"sslmode" yaml:"sslmode"`
	Params   map[string]string `mapstructure:"params" json:"params" yaml:"params"`
}

// DSN renders the config as a postgres:// URL.
func (c Config) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + c.Database,
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}

	q := url.Values{}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	q.Set("sslmode", sslMode)
	for k, v := range c.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens a PostgreSQL-backed store.
func Open(cfg Config, dispatcher *bulkhooks.Dispatcher) (*store.DB, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("postgres: database name is required")
	}
	return store.Open(DriverName, cfg.DSN(), dispatcher)
}
