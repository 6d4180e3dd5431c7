// registry.go
package bulkhooks

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/chmenegatti/bulkhooks/condition"
)

// Registration errors, reported immediately at Register time.
var (
	ErrNilHookFunc     = errors.New("bulkhooks: registration has a nil hook func")
	ErrMissingIdentity = errors.New("bulkhooks: registration requires handler and method identities")
	ErrUnknownEvent    = errors.New("bulkhooks: unknown lifecycle event")
)

// HookFunc is the callback invoked when a registration fires. It receives
// the full batch, matched and unmatched records together; argument data is
// carried in the Batch struct so handler signatures stay stable.
type HookFunc func(ctx context.Context, batch *Batch) error

// Batch is the payload delivered to a hook. New and Old have equal length
// after padding; a nil Old entry means no prior snapshot exists for that
// record (creates), a nil New entry the converse (deletes).
type Batch struct {
	Event Event
	Model reflect.Type
	New   []any
	Old   []any
	Extra map[string]any
}

// Registration describes one hook attached to an (entity type, event)
// pair. Handler and Method identify the hook for deduplication and
// diagnostics; they carry no behavior beyond identity.
type Registration struct {
	Handler       string
	Method        string
	Condition     condition.Condition // nil means the hook always applies
	Priority      Priority            // zero value is replaced with DefaultPriority
	PreloadFields []string            // relation fields warmed before evaluation
	Func          HookFunc
}

type registryKey struct {
	model reflect.Type
	event Event
}

type identityKey struct {
	model   reflect.Type
	event   Event
	handler string
	method  string
}

// Registry stores hook registrations keyed by (entity type, event).
// It is the only dispatch structure shared across goroutines: reads
// happen on every Handle call, writes typically only at startup, so an
// RWMutex guards the maps. Lookup returns copies, letting the dispatcher
// sort without holding the lock.
type Registry struct {
	mu    sync.RWMutex
	hooks map[registryKey][]Registration
	seen  map[identityKey]struct{}
}

// NewRegistry creates an empty, isolated registry. Most callers use the
// package-level default; tests that need full isolation create their own.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[registryKey][]Registration),
		seen:  make(map[identityKey]struct{}),
	}
}

// Register appends a registration for the given entity type and event.
// Registering the same (entity type, event, handler, method) key twice is
// a silent no-op, which guards against re-registration when the defining
// construct runs more than once. Malformed registrations error out
// immediately; nothing is deferred to dispatch time.
func (r *Registry) Register(model any, event Event, reg Registration) error {
	typ, err := modelType(model)
	if err != nil {
		return err
	}
	if !event.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if reg.Func == nil {
		return ErrNilHookFunc
	}
	if reg.Handler == "" || reg.Method == "" {
		return ErrMissingIdentity
	}
	if reg.Priority == 0 {
		reg.Priority = DefaultPriority
	}

	id := identityKey{model: typ, event: event, handler: reg.Handler, method: reg.Method}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[id]; dup {
		return nil
	}
	r.seen[id] = struct{}{}
	key := registryKey{model: typ, event: event}
	r.hooks[key] = append(r.hooks[key], reg)
	return nil
}

// Lookup returns the registrations for an entity type and event, in
// registration order. Unknown keys yield an empty slice, never an error.
// The returned slice is a copy and may be reordered freely.
func (r *Registry) Lookup(model any, event Event) []Registration {
	typ, err := modelType(model)
	if err != nil {
		return nil
	}
	return r.lookupType(typ, event)
}

func (r *Registry) lookupType(typ reflect.Type, event Event) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.hooks[registryKey{model: typ, event: event}]
	out := make([]Registration, len(regs))
	copy(out, regs)
	return out
}

// Clear removes every registration. Used for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = make(map[registryKey][]Registration)
	r.seen = make(map[identityKey]struct{})
}

// ListAll returns an introspection snapshot: entity type name -> event ->
// registrations. Names are package-qualified so same-named structs from
// different packages stay distinct. Intended for diagnostics and tests,
// not dispatch.
func (r *Registry) ListAll() map[string]map[Event][]Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[Event][]Registration)
	for key, regs := range r.hooks {
		name := typeName(key.model)
		if out[name] == nil {
			out[name] = make(map[Event][]Registration)
		}
		copied := make([]Registration, len(regs))
		copy(copied, regs)
		out[name][key.event] = copied
	}
	return out
}

// Scope snapshots the registry and returns a restore function. Every
// registration made between Scope and restore is discarded on restore;
// the registry goes back to the exact prior snapshot, not a merge.
//
//	restore := reg.Scope()
//	defer restore()
//	reg.Register(...)
func (r *Registry) Scope() (restore func()) {
	r.mu.Lock()
	hooks := make(map[registryKey][]Registration, len(r.hooks))
	for key, regs := range r.hooks {
		copied := make([]Registration, len(regs))
		copy(copied, regs)
		hooks[key] = copied
	}
	seen := make(map[identityKey]struct{}, len(r.seen))
	for id := range r.seen {
		seen[id] = struct{}{}
	}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.hooks = hooks
		r.seen = seen
		r.mu.Unlock()
	}
}

// TempRegister registers a hook and returns a restore function that
// removes it again, leaving the registry as it was before the call.
func (r *Registry) TempRegister(model any, event Event, reg Registration) (restore func(), err error) {
	restore = r.Scope()
	if err := r.Register(model, event, reg); err != nil {
		restore()
		return nil, err
	}
	return restore, nil
}

// defaultRegistry backs the package-level registration functions, in the
// same way the process-wide driver registry works in a database layer:
// registrations accumulate for the process lifetime unless cleared.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Register and
// by dispatchers constructed with a nil registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a hook registration to the default registry.
func Register(model any, event Event, reg Registration) error {
	return defaultRegistry.Register(model, event, reg)
}

// Lookup reads registrations from the default registry.
func Lookup(model any, event Event) []Registration {
	return defaultRegistry.Lookup(model, event)
}

// ListAll lists every registration in the default registry.
func ListAll() map[string]map[Event][]Registration {
	return defaultRegistry.ListAll()
}

// typeName qualifies a struct type with its package path.
func typeName(typ reflect.Type) string {
	if pkg := typ.PkgPath(); pkg != "" {
		return pkg + "." + typ.Name()
	}
	return typ.Name()
}

// modelType normalizes an entity-type token (struct value, pointer to
// struct, or reflect.Type) to the underlying struct type used as the
// registry key.
func modelType(model any) (reflect.Type, error) {
	if model == nil {
		return nil, errors.New("bulkhooks: entity type cannot be nil")
	}
	typ, ok := model.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(model)
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("bulkhooks: entity type must be a struct, got %s", typ.Kind())
	}
	return typ, nil
}
