// driver/mysql/mysql.go

// Package mysql wires MySQL and MariaDB into the store. Importing it
// registers the "mysql" dialect with backtick identifier quoting.
package mysql

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/store"
)

// DriverName is the database/sql driver name registered by go-sql-driver.
const DriverName = "mysql"

func init() {
	store.RegisterDialect(DriverName, Dialect{})
}

// Dialect quotes identifiers with backticks and uses "?" placeholders.
type Dialect struct{}

func (Dialect) Name() string                   { return DriverName }
func (Dialect) Quote(identifier string) string { return "`" + identifier + "`" }
func (Dialect) BindVar(int) string             { return "?" }

var _ store.Dialect = Dialect{}

// Config holds MySQL connection parameters.
type Config struct {
	Host     string            `mapstructure:"host" json:"host" yaml:"host"`
	Port     int               `mapstructure:"port" json:"port" yaml:"port"`
	Username string            `mapstructure:"username" json:"username" yaml:"username"`
	Password string            `mapstructure:"password" json:"password" yaml:"password"`
	Database string            `mapstructure:"database" json:"database" yaml:"database"`
	Params   map[string]string `mapstructure:"params" json:"params" yaml:"params"`
}

// DSN renders the config in go-sql-driver form:
// user:password@tcp(host:port)/database?param=value. parseTime is always
// enabled so DATETIME columns scan into time.Time, and charset defaults
// to utf8mb4.
func (c Config) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}

	params := make(map[string]string, len(c.Params)+2)
	for k, v := range c.Params {
		params[k] = v
	}
	params["parseTime"] = "true"
	if _, ok := params["charset"]; !ok {
		params["charset"] = "utf8mb4"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + url.QueryEscape(params[k])
	}

	auth := c.Username
	if c.Password != "" {
		auth += ":" + c.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", auth, host, port, c.Database, strings.Join(pairs, "&"))
}

// Open opens a MySQL-backed store.
func Open(cfg Config, dispatcher *bulkhooks.Dispatcher) (*store.DB, error) {
	if cfg.Username == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mysql: username and database are required")
	}
	return store.Open(DriverName, cfg.DSN(), dispatcher)
}
