// metadata/parser.go
package metadata

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
)

// metadataCache stores parse results for struct types already processed.
// Keyed by the reflect.Type of the struct; guarded by cacheMutex.
// RWMutex allows concurrent readers, which is the common case once the
// process has warmed up.
var (
	metadataCache = make(map[reflect.Type]*EntityMetadata)
	cacheMutex    sync.RWMutex
)

// Parse analyzes a record struct (passed as any, value or pointer) and
// returns its metadata based on the 'bulk' struct tags. Results are cached
// per type, so repeated calls during dispatch are cheap. Safe for
// concurrent use.
//
// Supported tag forms, semicolon separated:
//
//	bulk:"-"              ignore the field entirely
//	bulk:"column:name"    override the column name
//	bulk:"pk"             mark the field as the primary key
//
// Without a tag, the column name is the snake_case of the Go field name,
// and a field named "ID" is taken as the primary key.
func Parse(target any) (*EntityMetadata, error) {
	if target == nil {
		return nil, fmt.Errorf("metadata.Parse: target cannot be nil")
	}

	structType := reflect.TypeOf(target)
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("metadata.Parse: target must be a struct or pointer to struct, got %s", reflect.TypeOf(target).Kind())
	}

	// 1. Check the cache.
	cacheMutex.RLock()
	meta, found := metadataCache[structType]
	cacheMutex.RUnlock()
	if found {
		return meta, nil
	}

	// 2. Cache miss - take the write lock and double-check, another
	// goroutine may have parsed the same type in the meantime.
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	if meta, found = metadataCache[structType]; found {
		return meta, nil
	}

	entityMeta := &EntityMetadata{
		Name:         structType.Name(),
		Type:         structType,
		TableName:    strcase.ToSnake(structType.Name()) + "s",
		Fields:       make([]*FieldMetadata, 0, structType.NumField()),
		FieldsByName: make(map[string]*FieldMetadata),
	}

	for i := 0; i < structType.NumField(); i++ {
		sf := structType.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}

		tag := sf.Tag.Get("bulk")
		if tag == "-" {
			continue
		}

		field := &FieldMetadata{
			Entity: entityMeta,
			Name:   sf.Name,
			DBName: strcase.ToSnake(sf.Name),
			Index:  i,
			Type:   sf.Type,
		}

		if err := applyTag(field, tag); err != nil {
			return nil, fmt.Errorf("metadata.Parse: field %s.%s: %w", entityMeta.Name, sf.Name, err)
		}

		if rel, ok := isRelationType(sf.Type); ok {
			field.IsRelation = true
			field.RelatedType = rel
		}

		if !field.IsPrimaryKey && sf.Name == "ID" {
			field.IsPrimaryKey = true
		}
		if field.IsPrimaryKey {
			if entityMeta.PrimaryKey != nil {
				return nil, fmt.Errorf("metadata.Parse: type %s declares more than one primary key", entityMeta.Name)
			}
			entityMeta.PrimaryKey = field
		}

		entityMeta.Fields = append(entityMeta.Fields, field)
		entityMeta.FieldsByName[field.Name] = field
		entityMeta.FieldsByName[field.DBName] = field
	}

	metadataCache[structType] = entityMeta
	return entityMeta, nil
}

// applyTag parses the semicolon-separated 'bulk' tag options onto a field.
func applyTag(field *FieldMetadata, tag string) error {
	if tag == "" {
		return nil
	}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value := part, ""
		if idx := strings.Index(part, ":"); idx >= 0 {
			key, value = part[:idx], part[idx+1:]
		}
		switch strings.ToLower(key) {
		case "column":
			if value == "" {
				return fmt.Errorf("tag option 'column' requires a value")
			}
			field.DBName = value
		case "pk", "primarykey":
			field.IsPrimaryKey = true
		default:
			return fmt.Errorf("unknown tag option %q", key)
		}
	}
	return nil
}

// ResetCache clears the parsed-type cache. Intended for tests that define
// colliding types across packages.
func ResetCache() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	metadataCache = make(map[reflect.Type]*EntityMetadata)
}
