// condition/condition.go

// Package condition provides composable boolean predicates over a
// (new record, old record) pair. A hook registration carries at most one
// Condition; the dispatcher fires the hook only when the condition holds
// for at least one record pair in the batch.
//
// Leaves compare field values or detect transitions; And, Or and Not
// compose them to arbitrary depth. Evaluating a condition never mutates
// the records it inspects and never fails: missing fields, nil records
// and non-comparable operands all evaluate to false.
package condition

// Condition decides whether a hook applies to one record transition.
// newRecord is the post-mutation state; oldRecord is the prior snapshot
// and may be nil (creates, or padding in mixed batches).
type Condition interface {
	Check(newRecord, oldRecord any) bool
}

// isEqual fires when the new record's field equals the operand.
type isEqual struct {
	field string
	value any
}

// IsEqual matches when the resolved field on the new record equals value.
// The field is a dot-separated path and may traverse related records.
func IsEqual(field string, value any) Condition {
	return isEqual{field: field, value: value}
}

func (c isEqual) Check(newRecord, _ any) bool {
	return equal(ResolveDotted(newRecord, c.field), c.value)
}

// isNotEqual fires when the new record's field differs from the operand.
type isNotEqual struct {
	field string
	value any
}

// IsNotEqual matches when the resolved field on the new record does not
// equal value.
func IsNotEqual(field string, value any) Condition {
	return isNotEqual{field: field, value: value}
}

func (c isNotEqual) Check(newRecord, _ any) bool {
	return !equal(ResolveDotted(newRecord, c.field), c.value)
}

// hasChanged fires when the field value differs between snapshots.
type hasChanged struct {
	field string
}

// HasChanged matches when the resolved field differs between the new and
// old record. When no old snapshot exists, absent-to-present counts as
// changed only if the new value is non-nil and non-zero for its type.
func HasChanged(field string) Condition {
	return hasChanged{field: field}
}

func (c hasChanged) Check(newRecord, oldRecord any) bool {
	newVal := ResolveDotted(newRecord, c.field)
	if oldRecord == nil {
		return newVal != nil && !isZero(newVal)
	}
	return !equal(newVal, ResolveDotted(oldRecord, c.field))
}

// changesTo fires on the transition into a specific value.
type changesTo struct {
	field string
	value any
}

// ChangesTo matches when the new value equals value AND the old value did
// not. It does not keep matching on subsequent saves while the field
// stays at value.
func ChangesTo(field string, value any) Condition {
	return changesTo{field: field, value: value}
}

func (c changesTo) Check(newRecord, oldRecord any) bool {
	return equal(ResolveDotted(newRecord, c.field), c.value) &&
		!equal(ResolveDotted(oldRecord, c.field), c.value)
}

// wasEqual fires based on the old snapshot alone.
type wasEqual struct {
	field string
	value any
}

// WasEqual matches when the old record's field equals value, regardless
// of the new value.
func WasEqual(field string, value any) Condition {
	return wasEqual{field: field, value: value}
}

func (c wasEqual) Check(_, oldRecord any) bool {
	return equal(ResolveDotted(oldRecord, c.field), c.value)
}

// ordered is the shared shape of the four ordered-comparison leaves.
// op receives the sign of compare(fieldValue, operand).
type ordered struct {
	field string
	value any
	op    func(cmp int) bool
}

func (c ordered) Check(newRecord, _ any) bool {
	cmp, ok := compare(ResolveDotted(newRecord, c.field), c.value)
	if !ok {
		return false
	}
	return c.op(cmp)
}

// IsGreaterThan matches when the new record's field is strictly greater
// than value. Absent or non-orderable values evaluate false.
func IsGreaterThan(field string, value any) Condition {
	return ordered{field: field, value: value, op: func(cmp int) bool { return cmp > 0 }}
}

// IsGreaterThanOrEqual matches when the new record's field is greater
// than or equal to value.
func IsGreaterThanOrEqual(field string, value any) Condition {
	return ordered{field: field, value: value, op: func(cmp int) bool { return cmp >= 0 }}
}

// IsLessThan matches when the new record's field is strictly less than
// value.
func IsLessThan(field string, value any) Condition {
	return ordered{field: field, value: value, op: func(cmp int) bool { return cmp < 0 }}
}

// IsLessThanOrEqual matches when the new record's field is less than or
// equal to value.
func IsLessThanOrEqual(field string, value any) Condition {
	return ordered{field: field, value: value, op: func(cmp int) bool { return cmp <= 0 }}
}

// byFunc wraps an arbitrary predicate function.
type byFunc struct {
	name string
	fn   func(newRecord, oldRecord any) bool
}

// ByFunc wraps a predicate function as a Condition. The name is only
// used for diagnostics. A nil fn evaluates false.
func ByFunc(name string, fn func(newRecord, oldRecord any) bool) Condition {
	return byFunc{name: name, fn: fn}
}

func (c byFunc) Check(newRecord, oldRecord any) bool {
	if c.fn == nil {
		return false
	}
	return c.fn(newRecord, oldRecord)
}

// andCondition is true iff all children are true.
type andCondition struct {
	children []Condition
}

// And combines conditions with logical AND. And() with no children is
// vacuously true.
func And(conditions ...Condition) Condition {
	return andCondition{children: conditions}
}

func (c andCondition) Check(newRecord, oldRecord any) bool {
	for _, child := range c.children {
		if !child.Check(newRecord, oldRecord) {
			return false
		}
	}
	return true
}

// orCondition is true iff any child is true.
type orCondition struct {
	children []Condition
}

// Or combines conditions with logical OR. Or() with no children is false.
func Or(conditions ...Condition) Condition {
	return orCondition{children: conditions}
}

func (c orCondition) Check(newRecord, oldRecord any) bool {
	for _, child := range c.children {
		if child.Check(newRecord, oldRecord) {
			return true
		}
	}
	return false
}

// notCondition negates its child.
type notCondition struct {
	child Condition
}

// Not negates a condition.
func Not(c Condition) Condition {
	return notCondition{child: c}
}

func (c notCondition) Check(newRecord, oldRecord any) bool {
	return !c.child.Check(newRecord, oldRecord)
}
