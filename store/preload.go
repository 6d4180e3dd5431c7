// store/preload.go
package store

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/chmenegatti/bulkhooks/metadata"
)

// Preloader warms relation fields on a batch of records with one query
// per relation, instead of a query per record inside hook loops. It
// implements bulkhooks.Preloader.
//
// The foreign key convention is <RelationField>ID: preloading "CreatedBy"
// on a record reads CreatedByID, fetches the related rows with a single
// IN query, and installs them in place. Relations that are already set
// are left alone, so explicitly assigned values are never overwritten.
//
// Preloading never fails: anything that cannot be satisfied (unknown
// field, missing FK column, query error) is logged and skipped, and the
// affected hooks fall back to lazy loading.
type Preloader struct {
	db *DB
}

// NewPreloader creates a preloader over a store.
func NewPreloader(db *DB) *Preloader { return &Preloader{db: db} }

// PreloadRelated warms the given relation fields on every record in the
// batch, in place.
func (p *Preloader) PreloadRelated(ctx context.Context, records []any, fields []string) {
	if len(records) == 0 || len(fields) == 0 {
		return
	}
	first := firstNonNil(records)
	if first == nil {
		return
	}
	meta, err := metadata.Parse(first)
	if err != nil {
		p.db.logger.WarnContext(ctx, "preload skipped", slog.Any("error", err))
		return
	}

	for _, field := range fields {
		if err := p.preloadField(ctx, meta, records, field); err != nil {
			p.db.logger.WarnContext(ctx, "preload degraded to lazy loading",
				slog.String("model", meta.Name),
				slog.String("field", field),
				slog.Any("error", err),
			)
		}
	}
}

func (p *Preloader) preloadField(ctx context.Context, meta *metadata.EntityMetadata, records []any, field string) error {
	rel, ok := meta.Field(field)
	if !ok || !rel.IsRelation {
		return fmt.Errorf("%q is not a relation field", field)
	}
	fk, ok := meta.Field(rel.Name + "ID")
	if !ok {
		return fmt.Errorf("no foreign key field %sID", rel.Name)
	}

	relMeta, err := metadata.Parse(reflect.New(rel.RelatedType).Interface())
	if err != nil {
		return err
	}
	if relMeta.PrimaryKey == nil {
		return fmt.Errorf("related type %s has no primary key", relMeta.Name)
	}

	// Collect the keys of records whose relation is still unset.
	wanted := make(map[any][]any)
	for _, record := range records {
		if record == nil {
			continue
		}
		if current, ok := rel.ValueOf(record); !ok || current != nil {
			continue
		}
		key, ok := fk.ValueOf(record)
		if !ok || key == nil || reflect.ValueOf(key).IsZero() {
			continue
		}
		nk := normalizeKey(key)
		wanted[nk] = append(wanted[nk], record)
	}
	if len(wanted) == 0 {
		return nil
	}

	cols := sqlColumns(relMeta)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = p.db.dialect.Quote(col.DBName)
	}
	binds := make([]string, 0, len(wanted))
	args := make([]any, 0, len(wanted))
	for key := range wanted {
		binds = append(binds, p.db.dialect.BindVar(len(args)+1))
		args = append(args, key)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(names, ", "), p.db.dialect.Quote(relMeta.TableName),
		p.db.dialect.Quote(relMeta.PrimaryKey.DBName), strings.Join(binds, ", "))
	rows, err := p.db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	related, err := scanRows(rows, relMeta, cols)
	if err != nil {
		return err
	}

	for _, rec := range related {
		pk, ok := relMeta.PrimaryKey.ValueOf(rec)
		if !ok {
			continue
		}
		for _, target := range wanted[normalizeKey(pk)] {
			rel.SetValueOf(target, rec)
		}
	}
	return nil
}

func firstNonNil(records []any) any {
	for _, r := range records {
		if r != nil {
			return r
		}
	}
	return nil
}
