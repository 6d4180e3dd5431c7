// driver/sqlserver/sqlserver.go

// Package sqlserver wires Microsoft SQL Server into the store via
// go-mssqldb. Importing it registers the "sqlserver" dialect.
package sqlserver

import (
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/store"
)

// DriverName is the database/sql driver name registered by go-mssqldb.
const DriverName = "sqlserver"

func init() {
	store.RegisterDialect(DriverName, Dialect{})
}

// Dialect quotes identifiers with brackets and uses @pN placeholders.
type Dialect struct{}

func (Dialect) Name() string                   { return DriverName }
func (Dialect) Quote(identifier string) string { return "[" + identifier + "]" }
func (Dialect) BindVar(i int) string           { return fmt.Sprintf("@p%d", i) }

var _ store.Dialect = Dialect{}

// Config holds SQL Server connection parameters.
type Config struct {
	Host     string            `mapstructure:"host" json:"host" yaml:"host"`
	Port     int               `mapstructure:"port" json:"port" yaml:"port"`
	Username string            `mapstructure:"username" json:"username" yaml:"username"`
	Password string            `mapstructure:"password" json:"password" yaml:"password"`
	Database string            `mapstructure:"database" json:"database" yaml:"database"`
	Params   map[string]string `mapstructure:"params" json:"params" yaml:"params"`
}

// DSN renders the config as a sqlserver:// URL.
func (c Config) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 1433
	}

	u := url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}

	q := url.Values{}
	q.Set("database", c.Database)
	for k, v := range c.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens a SQL Server-backed store.
func Open(cfg Config, dispatcher *bulkhooks.Dispatcher) (*store.DB, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("sqlserver: database name is required")
	}
	return store.Open(DriverName, cfg.DSN(), dispatcher)
}
