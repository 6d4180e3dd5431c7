// events.go
package bulkhooks

import "strings"

// Event identifies a lifecycle phase of a bulk or single-record mutation.
// validate_* and before_* events run synchronously inline; after_* events
// are deferred to transaction commit when dispatched inside an atomic
// block.
type Event string

const (
	ValidateCreate Event = "validate_create"
	ValidateUpdate Event = "validate_update"
	ValidateDelete Event = "validate_delete"

	BeforeCreate Event = "before_create"
	AfterCreate  Event = "after_create"
	BeforeUpdate Event = "before_update"
	AfterUpdate  Event = "after_update"
	BeforeDelete Event = "before_delete"
	AfterDelete  Event = "after_delete"
)

// events is the closed set of valid lifecycle events.
var events = map[Event]struct{}{
	ValidateCreate: {}, ValidateUpdate: {}, ValidateDelete: {},
	BeforeCreate: {}, AfterCreate: {},
	BeforeUpdate: {}, AfterUpdate: {},
	BeforeDelete: {}, AfterDelete: {},
}

// Valid reports whether e belongs to the closed event set.
func (e Event) Valid() bool {
	_, ok := events[e]
	return ok
}

// IsValidate reports whether e is a validate_* event.
func (e Event) IsValidate() bool { return strings.HasPrefix(string(e), "validate_") }

// IsBefore reports whether e is a before_* event.
func (e Event) IsBefore() bool { return strings.HasPrefix(string(e), "before_") }

// IsAfter reports whether e is an after_* event.
func (e Event) IsAfter() bool { return strings.HasPrefix(string(e), "after_") }

// IsCreate reports whether e belongs to the create lifecycle.
func (e Event) IsCreate() bool { return strings.HasSuffix(string(e), "_create") }

// IsUpdate reports whether e belongs to the update lifecycle.
func (e Event) IsUpdate() bool { return strings.HasSuffix(string(e), "_update") }

// IsDelete reports whether e belongs to the delete lifecycle.
func (e Event) IsDelete() bool { return strings.HasSuffix(string(e), "_delete") }

// Priority orders hook execution within one (entity type, event) pair.
// Execution order is ascending: a lower value runs first, and hooks with
// equal priority run in registration order. The named levels follow that
// convention, so PriorityHigh really does run before PriorityLow.
type Priority int

const (
	PriorityHigh   Priority = 25
	PriorityNormal Priority = 50
	PriorityLow    Priority = 75

	// DefaultPriority is applied when a registration leaves Priority at
	// its zero value.
	DefaultPriority = PriorityNormal
)
