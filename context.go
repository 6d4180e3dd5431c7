// context.go
package bulkhooks

import (
	"context"
	"reflect"
)

// dispatchStateKey is the unexported context key carrying per-dispatch
// state. Using a private struct type prevents collisions with other
// context values.
type dispatchStateKey struct{}

// queuedDispatch is one pending Handle call, processed in strict FIFO
// order by the outermost invocation's drain loop.
type queuedDispatch struct {
	event Event
	model reflect.Type
	new   []any
	old   []any
	extra map[string]any
}

// dispatchState is the per-call-chain equivalent of thread-local dispatch
// state: the reentrancy queue, the drain flag, and the currently active
// execution context. It is carried in the context.Context handed to hooks
// and is never shared across goroutines.
type dispatchState struct {
	queue    []queuedDispatch
	draining bool
	depth    int
	current  *State
}

// stateFrom extracts the dispatch state from a context, or nil when the
// context is outside any dispatch.
func stateFrom(ctx context.Context) *dispatchState {
	st, _ := ctx.Value(dispatchStateKey{}).(*dispatchState)
	return st
}

// ensureState returns the context's dispatch state, installing a fresh
// one (and deriving a new context) when absent.
func ensureState(ctx context.Context) (context.Context, *dispatchState) {
	if st := stateFrom(ctx); st != nil {
		return ctx, st
	}
	st := &dispatchState{}
	return context.WithValue(ctx, dispatchStateKey{}, st), st
}

// State exposes what is being dispatched right now: the event, the entity
// type, and the padded record batches. It is visible only through a
// context captured inside a hook invocation and is cleared when process
// exits, so values never go stale or leak across dispatch chains.
type State struct {
	Event Event
	Model reflect.Type
	New   []any
	Old   []any
	Depth int
}

// IsValidate reports whether the active event is a validate_* event.
func (s *State) IsValidate() bool { return s.Event.IsValidate() }

// IsBefore reports whether the active event is a before_* event.
func (s *State) IsBefore() bool { return s.Event.IsBefore() }

// IsAfter reports whether the active event is an after_* event.
func (s *State) IsAfter() bool { return s.Event.IsAfter() }

// IsCreate reports whether the active event belongs to the create
// lifecycle.
func (s *State) IsCreate() bool { return s.Event.IsCreate() }

// IsUpdate reports whether the active event belongs to the update
// lifecycle.
func (s *State) IsUpdate() bool { return s.Event.IsUpdate() }

// Current returns the execution context of the dispatch the given ctx is
// inside of, if any. Outside dispatch it returns (nil, false).
func Current(ctx context.Context) (*State, bool) {
	st := stateFrom(ctx)
	if st == nil || st.current == nil {
		return nil, false
	}
	return st.current, true
}
