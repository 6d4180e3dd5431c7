// metadata/metadata.go
package metadata

import (
	"reflect"
	"time"
)

// EntityMetadata stores metadata about a record type (a mapped Go struct).
// The hook engine treats records as opaque values with named fields; this
// package is what gives conditions and stores access to those fields.
type EntityMetadata struct {
	Name      string       // Go struct name (e.g. "Account")
	TableName string       // table/collection name (e.g. "accounts")
	Type      reflect.Type // the reflect.Type of the struct (pointer stripped)

	Fields       []*FieldMetadata          // all mapped fields, in declaration order
	FieldsByName map[string]*FieldMetadata // keyed by Go field name AND by column name

	PrimaryKey *FieldMetadata // nil when the type declares no key
}

// FieldMetadata stores metadata about a single struct field.
type FieldMetadata struct {
	Entity *EntityMetadata // back-reference to the owning entity

	Name   string       // Go field name (e.g. "CreatedBy")
	DBName string       // column name (e.g. "created_by")
	Index  int          // field index for reflect.Value.Field
	Type   reflect.Type // declared field type

	IsPrimaryKey bool
	IsRelation   bool         // field holds (a pointer to) another record struct
	RelatedType  reflect.Type // element type of the relation, nil otherwise
}

// Field looks a field up by Go name or column name.
func (e *EntityMetadata) Field(name string) (*FieldMetadata, bool) {
	f, ok := e.FieldsByName[name]
	return f, ok
}

// ValueOf reads this field from a record. The record may be the struct
// value or a pointer to it; a nil record or a type mismatch yields
// (nil, false). A nil pointer-typed field reads as (nil, true): the field
// exists, its value is absent.
func (f *FieldMetadata) ValueOf(record any) (any, bool) {
	rv, ok := structValue(record, f.Entity.Type)
	if !ok {
		return nil, false
	}
	fv := rv.Field(f.Index)
	if !fv.IsValid() || !fv.CanInterface() {
		return nil, false
	}
	if fv.Kind() == reflect.Ptr && fv.IsNil() {
		return nil, true
	}
	return fv.Interface(), true
}

// SetValueOf writes a value into this field on a record, which must be a
// pointer to the entity struct. Used by preloaders to install related
// records in place.
func (f *FieldMetadata) SetValueOf(record any, value any) bool {
	if record == nil {
		return false
	}
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Type() != f.Entity.Type {
		return false
	}
	fv := rv.Elem().Field(f.Index)
	if !fv.CanSet() {
		return false
	}
	vv := reflect.ValueOf(value)
	if !vv.IsValid() || !vv.Type().AssignableTo(fv.Type()) {
		return false
	}
	fv.Set(vv)
	return true
}

// Value resolves a single (non-dotted) field on a record. It parses the
// record's type on demand and reads the field; unknown fields and nil
// records yield (nil, false) rather than an error, because condition
// evaluation must never fail on a missing attribute.
func Value(record any, field string) (any, bool) {
	if record == nil {
		return nil, false
	}
	meta, err := Parse(record)
	if err != nil {
		return nil, false
	}
	f, ok := meta.Field(field)
	if !ok {
		return nil, false
	}
	return f.ValueOf(record)
}

// structValue unwraps a record to the reflect.Value of the expected
// struct type, dereferencing at most one pointer level.
func structValue(record any, want reflect.Type) (reflect.Value, bool) {
	if record == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(record)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.Type() != want {
		return reflect.Value{}, false
	}
	return rv, true
}

// isRelationType reports whether a field type refers to another record
// struct. time.Time is a plain value, not a relation.
func isRelationType(t reflect.Type) (reflect.Type, bool) {
	elem := t
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, false
	}
	if elem == reflect.TypeOf(time.Time{}) {
		return nil, false
	}
	return elem, true
}
