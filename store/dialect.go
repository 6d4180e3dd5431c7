// store/dialect.go
package store

import (
	"fmt"
	"sync"
)

// Dialect abstracts the identifier quoting and bind-variable syntax that
// differs between SQL backends. Driver packages register their dialect
// under the database/sql driver name via init().
type Dialect interface {
	Name() string
	Quote(identifier string) string
	BindVar(i int) string // 1-based placeholder, e.g. "?", "$1", "@p1"
}

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]Dialect)
)

// RegisterDialect makes a dialect available under the given driver name.
// Registering twice for the same name panics, as does a nil dialect;
// both indicate a wiring bug, not a runtime condition.
func RegisterDialect(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	if d == nil {
		panic("store: RegisterDialect dialect is nil")
	}
	if _, dup := dialects[name]; dup {
		panic("store: RegisterDialect called twice for driver " + name)
	}
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name.
func GetDialect(name string) (Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// RegisteredDialects lists the names of all registered dialects.
func RegisteredDialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	list := make([]string, 0, len(dialects))
	for name := range dialects {
		list = append(list, name)
	}
	return list
}

// QuestionDialect is the fallback dialect: bare identifiers and "?"
// placeholders, which MySQL and SQLite accept as-is.
type QuestionDialect struct{ DriverName string }

func (d QuestionDialect) Name() string {
	if d.DriverName == "" {
		return "generic"
	}
	return d.DriverName
}

func (d QuestionDialect) Quote(identifier string) string { return identifier }

func (d QuestionDialect) BindVar(int) string { return "?" }

var _ Dialect = QuestionDialect{}

// NumberedDialect produces $n placeholders and double-quoted
// identifiers, the PostgreSQL convention.
type NumberedDialect struct{ DriverName string }

func (d NumberedDialect) Name() string { return d.DriverName }

func (d NumberedDialect) Quote(identifier string) string { return `"` + identifier + `"` }

func (d NumberedDialect) BindVar(i int) string { return fmt.Sprintf("$%d", i) }

var _ Dialect = NumberedDialect{}
