// store/store.go

// Package store is a database/sql storage layer wired to the bulkhooks
// dispatch engine: every bulk or single-record mutation notifies the
// engine before and after persistence, with validate/before hooks able
// to veto the mutation and after hooks deferred to transaction commit.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/metadata"
)

// ErrNoPrimaryKey is returned by operations that need to address rows by
// identity on a type that declares no primary key.
var ErrNoPrimaryKey = errors.New("store: entity type has no primary key")

// DB wraps a *sql.DB with a dialect and a hook dispatcher.
type DB struct {
	sqlDB      *sql.DB
	dialect    Dialect
	dispatcher *bulkhooks.Dispatcher
	logger     *slog.Logger
}

// New creates a store over an existing connection pool. A nil dialect
// falls back to "?" placeholders; a nil dispatcher gets a fresh one wired
// to the default registry, this store's transaction manager, and this
// store's relation preloader.
func New(sqlDB *sql.DB, dialect Dialect, dispatcher *bulkhooks.Dispatcher) *DB {
	if dialect == nil {
		dialect = QuestionDialect{}
	}
	db := &DB{
		sqlDB:   sqlDB,
		dialect: dialect,
		logger:  slog.Default(),
	}
	if dispatcher == nil {
		dispatcher = bulkhooks.NewDispatcher(nil, &Preloader{db: db}, TxManager{})
	}
	db.dispatcher = dispatcher
	return db
}

// Open opens a connection pool by driver name and DSN and wraps it in a
// store. The dialect registered by the matching driver package is used
// when present.
func Open(driverName, dsn string, dispatcher *bulkhooks.Dispatcher) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driverName, err)
	}
	dialect, ok := GetDialect(driverName)
	if !ok {
		dialect = QuestionDialect{DriverName: driverName}
	}
	return New(sqlDB, dialect, dispatcher), nil
}

// Close closes the underlying pool.
func (db *DB) Close() error { return db.sqlDB.Close() }

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error { return db.sqlDB.PingContext(ctx) }

// Dispatcher returns the hook dispatcher this store notifies.
func (db *DB) Dispatcher() *bulkhooks.Dispatcher { return db.dispatcher }

// SetLogger replaces the structured logger.
func (db *DB) SetLogger(logger *slog.Logger) {
	if logger != nil {
		db.logger = logger
	}
}

// Options collects per-operation settings. Driver packages that expose
// their own stores reuse it so WithoutHooks and WithExtra work the same
// everywhere.
type Options struct {
	BypassHooks bool
	Extra       map[string]any
}

// Option adjusts a single bulk operation.
type Option func(*Options)

// WithoutHooks performs the mutation without notifying the dispatch
// engine at all, the escape hatch for migrations and backfills.
func WithoutHooks() Option {
	return func(o *Options) { o.BypassHooks = true }
}

// WithExtra attaches an extra named argument delivered to every hook of
// this operation via Batch.Extra.
func WithExtra(key string, value any) Option {
	return func(o *Options) {
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = value
	}
}

// ApplyOptions folds a list of options into a settings value.
func ApplyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BulkCreate inserts records in one multi-row INSERT. Hook order:
// validate_create and before_create inline ahead of the INSERT (their
// error aborts it), after_create following it, deferred to commit when
// inside a transaction. The whole batch is dispatched as one logical
// operation, never record by record.
func (db *DB) BulkCreate(ctx context.Context, records []any, opts ...Option) error {
	if len(records) == 0 {
		return nil
	}
	o := ApplyOptions(opts)
	meta, err := metadata.Parse(records[0])
	if err != nil {
		return fmt.Errorf("store: bulk create: %w", err)
	}

	if !o.BypassHooks {
		if err := db.dispatcher.Handle(ctx, bulkhooks.ValidateCreate, records[0], records, nil, o.Extra); err != nil {
			return err
		}
		if err := db.dispatcher.Handle(ctx, bulkhooks.BeforeCreate, records[0], records, nil, o.Extra); err != nil {
			return err
		}
	}

	cols := sqlColumns(meta)
	if len(cols) == 0 {
		return fmt.Errorf("store: bulk create: type %s has no mapped columns", meta.Name)
	}

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = db.dialect.Quote(col.DBName)
	}

	var (
		rowExprs []string
		args     []any
		bind     = 1
	)
	for _, record := range records {
		binds := make([]string, len(cols))
		for i, col := range cols {
			value, ok := col.ValueOf(record)
			if !ok {
				return fmt.Errorf("store: bulk create: cannot read %s.%s", meta.Name, col.Name)
			}
			binds[i] = db.dialect.BindVar(bind)
			bind++
			args = append(args, value)
		}
		rowExprs = append(rowExprs, "("+strings.Join(binds, ", ")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		db.dialect.Quote(meta.TableName), strings.Join(names, ", "), strings.Join(rowExprs, ", "))
	if _, err := db.executor(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: bulk create %s: %w", meta.TableName, err)
	}

	if !o.BypassHooks {
		if err := db.dispatcher.Handle(ctx, bulkhooks.AfterCreate, records[0], records, nil, o.Extra); err != nil {
			return err
		}
	}
	return nil
}

// BulkUpdate writes the given fields of every record, addressing rows by
// primary key. The prior row states are fetched first so conditions like
// HasChanged see real old snapshots; hooks receive old records aligned
// index-for-index with the new ones. An empty fields list updates every
// non-key column.
func (db *DB) BulkUpdate(ctx context.Context, records []any, fields []string, opts ...Option) error {
	if len(records) == 0 {
		return nil
	}
	o := ApplyOptions(opts)
	meta, err := metadata.Parse(records[0])
	if err != nil {
		return fmt.Errorf("store: bulk update: %w", err)
	}
	if meta.PrimaryKey == nil {
		return fmt.Errorf("store: bulk update %s: %w", meta.Name, ErrNoPrimaryKey)
	}

	updateCols, err := resolveFields(meta, fields)
	if err != nil {
		return fmt.Errorf("store: bulk update: %w", err)
	}

	var oldRecords []any
	if !o.BypassHooks {
		oldRecords, err = db.fetchOriginals(ctx, meta, records)
		if err != nil {
			return err
		}
		if err := db.dispatcher.Handle(ctx, bulkhooks.ValidateUpdate, records[0], records, oldRecords, o.Extra); err != nil {
			return err
		}
		if err := db.dispatcher.Handle(ctx, bulkhooks.BeforeUpdate, records[0], records, oldRecords, o.Extra); err != nil {
			return err
		}
	}

	exec := db.executor(ctx)
	for _, record := range records {
		var (
			sets []string
			args []any
			bind = 1
		)
		for _, col := range updateCols {
			value, ok := col.ValueOf(record)
			if !ok {
				return fmt.Errorf("store: bulk update: cannot read %s.%s", meta.Name, col.Name)
			}
			sets = append(sets, fmt.Sprintf("%s = %s", db.dialect.Quote(col.DBName), db.dialect.BindVar(bind)))
			bind++
			args = append(args, value)
		}
		pk, ok := meta.PrimaryKey.ValueOf(record)
		if !ok {
			return fmt.Errorf("store: bulk update: cannot read %s.%s", meta.Name, meta.PrimaryKey.Name)
		}
		args = append(args, pk)

		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
			db.dialect.Quote(meta.TableName), strings.Join(sets, ", "),
			db.dialect.Quote(meta.PrimaryKey.DBName), db.dialect.BindVar(bind))
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: bulk update %s: %w", meta.TableName, err)
		}
	}

	if !o.BypassHooks {
		if err := db.dispatcher.Handle(ctx, bulkhooks.AfterUpdate, records[0], records, oldRecords, o.Extra); err != nil {
			return err
		}
	}
	return nil
}

// BulkDelete removes records by primary key in one DELETE ... IN. Hooks
// receive the records being deleted as the new batch; there is no newer
// state for a deletion.
func (db *DB) BulkDelete(ctx context.Context, records []any, opts ...Option) error {
	if len(records) == 0 {
		return nil
	}
	o := ApplyOptions(opts)
	meta, err := metadata.Parse(records[0])
	if err != nil {
		return fmt.Errorf("store: bulk delete: %w", err)
	}
	if meta.PrimaryKey == nil {
		return fmt.Errorf("store: bulk delete %s: %w", meta.Name, ErrNoPrimaryKey)
	}

	if !o.BypassHooks {
		if err := db.dispatcher.Handle(ctx, bulkhooks.ValidateDelete, records[0], records, nil, o.Extra); err != nil {
			return err
		}
		if err := db.dispatcher.Handle(ctx, bulkhooks.BeforeDelete, records[0], records, nil, o.Extra); err != nil {
			return err
		}
	}

	binds := make([]string, len(records))
	args := make([]any, len(records))
	for i, record := range records {
		pk, ok := meta.PrimaryKey.ValueOf(record)
		if !ok {
			return fmt.Errorf("store: bulk delete: cannot read %s.%s", meta.Name, meta.PrimaryKey.Name)
		}
		binds[i] = db.dialect.BindVar(i + 1)
		args[i] = pk
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		db.dialect.Quote(meta.TableName), db.dialect.Quote(meta.PrimaryKey.DBName), strings.Join(binds, ", "))
	if _, err := db.executor(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: bulk delete %s: %w", meta.TableName, err)
	}

	if !o.BypassHooks {
		if err := db.dispatcher.Handle(ctx, bulkhooks.AfterDelete, records[0], records, nil, o.Extra); err != nil {
			return err
		}
	}
	return nil
}

// Save creates the record when its primary key is zero, updates all
// columns otherwise.
func (db *DB) Save(ctx context.Context, record any, opts ...Option) error {
	meta, err := metadata.Parse(record)
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	if meta.PrimaryKey == nil {
		return fmt.Errorf("store: save %s: %w", meta.Name, ErrNoPrimaryKey)
	}
	pk, _ := meta.PrimaryKey.ValueOf(record)
	if pk == nil || reflect.ValueOf(pk).IsZero() {
		return db.BulkCreate(ctx, []any{record}, opts...)
	}
	return db.BulkUpdate(ctx, []any{record}, nil, opts...)
}

// Delete removes a single record.
func (db *DB) Delete(ctx context.Context, record any, opts ...Option) error {
	return db.BulkDelete(ctx, []any{record}, opts...)
}

// fetchOriginals loads the current row state for every record, by primary
// key, and returns them aligned with the input order. Records without a
// matching row (or a zero key) get a nil slot, which the engine treats as
// an absent snapshot.
func (db *DB) fetchOriginals(ctx context.Context, meta *metadata.EntityMetadata, records []any) ([]any, error) {
	var (
		binds []string
		args  []any
	)
	for _, record := range records {
		pk, ok := meta.PrimaryKey.ValueOf(record)
		if !ok || pk == nil || reflect.ValueOf(pk).IsZero() {
			continue
		}
		binds = append(binds, db.dialect.BindVar(len(args)+1))
		args = append(args, pk)
	}
	originals := make([]any, len(records))
	if len(args) == 0 {
		return originals, nil
	}

	cols := sqlColumns(meta)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = db.dialect.Quote(col.DBName)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(names, ", "), db.dialect.Quote(meta.TableName),
		db.dialect.Quote(meta.PrimaryKey.DBName), strings.Join(binds, ", "))

	rows, err := db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: fetch originals for %s: %w", meta.TableName, err)
	}
	defer rows.Close()

	fetched, err := scanRows(rows, meta, cols)
	if err != nil {
		return nil, fmt.Errorf("store: fetch originals for %s: %w", meta.TableName, err)
	}

	byKey := make(map[any]any, len(fetched))
	for _, original := range fetched {
		pk, ok := meta.PrimaryKey.ValueOf(original)
		if !ok {
			continue
		}
		byKey[normalizeKey(pk)] = original
	}
	for i, record := range records {
		pk, ok := meta.PrimaryKey.ValueOf(record)
		if !ok {
			continue
		}
		originals[i] = byKey[normalizeKey(pk)]
	}
	return originals, nil
}

// scanRows materializes every row as a fresh *T for the entity type,
// scanning the given columns in order.
func scanRows(rows *sql.Rows, meta *metadata.EntityMetadata, cols []*metadata.FieldMetadata) ([]any, error) {
	var out []any
	for rows.Next() {
		instance := reflect.New(meta.Type)
		dest := make([]any, len(cols))
		for i, col := range cols {
			dest[i] = instance.Elem().Field(col.Index).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, instance.Interface())
	}
	return out, rows.Err()
}

// sqlColumns lists the fields stored as SQL columns: everything except
// relation fields, which live on the related table.
func sqlColumns(meta *metadata.EntityMetadata) []*metadata.FieldMetadata {
	cols := make([]*metadata.FieldMetadata, 0, len(meta.Fields))
	for _, f := range meta.Fields {
		if f.IsRelation {
			continue
		}
		cols = append(cols, f)
	}
	return cols
}

// resolveFields maps user-supplied field names (Go or column names) to
// column metadata; empty input selects every non-key column.
func resolveFields(meta *metadata.EntityMetadata, fields []string) ([]*metadata.FieldMetadata, error) {
	if len(fields) == 0 {
		cols := make([]*metadata.FieldMetadata, 0, len(meta.Fields))
		for _, f := range sqlColumns(meta) {
			if f.IsPrimaryKey {
				continue
			}
			cols = append(cols, f)
		}
		return cols, nil
	}
	cols := make([]*metadata.FieldMetadata, 0, len(fields))
	for _, name := range fields {
		f, ok := meta.Field(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q on %s", name, meta.Name)
		}
		if f.IsRelation {
			return nil, fmt.Errorf("field %q on %s is a relation, not a column", name, meta.Name)
		}
		cols = append(cols, f)
	}
	return cols, nil
}

// normalizeKey widens primary key values so int32/int64 variants of the
// same key compare equal as map keys.
func normalizeKey(pk any) any {
	rv := reflect.ValueOf(pk)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	default:
		return fmt.Sprint(pk)
	}
}
