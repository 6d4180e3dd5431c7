// condition/resolve.go
package condition

import (
	"reflect"
	"strings"
	"time"

	"github.com/chmenegatti/bulkhooks/metadata"
)

// ResolveDotted traverses a dot-separated field path across a record and
// its related records, e.g. "created_by.department.name". It returns the
// leaf value, or nil when the starting record is nil, any hop does not
// exist, or any intermediate relation is unset. It never panics on a
// missing attribute; conditions over optional relations must not crash
// dispatch.
func ResolveDotted(record any, path string) any {
	current := record
	for _, part := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}
		value, ok := metadata.Value(current, part)
		if !ok {
			return nil
		}
		current = value
	}
	return current
}

// equal reports value equality with nil-awareness and numeric
// normalization, so e.g. int64(5) stored on a record matches the literal
// 5 used in a condition.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Equal(bt)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values: -1, 0 or 1, with ok=false when the pair is
// not orderable (absent value, mixed kinds, unsupported type). Numbers
// order across int/uint/float kinds; strings and time.Time order within
// their own kind.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		if !bok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if at, aok := a.(time.Time); aok {
		bt, bok := b.(time.Time)
		if !bok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// toFloat widens any numeric kind to float64 for cross-kind comparison.
func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// isZero reports whether a value is the zero value of its type.
func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}
