// engine.go
package bulkhooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Dispatcher turns a raw mutation notification into ordered, filtered,
// transaction-aware hook invocations. It is stateless between calls;
// all per-dispatch state travels in the context, so one Dispatcher can
// serve any number of goroutines concurrently.
type Dispatcher struct {
	registry        *Registry
	preloader       Preloader
	tx              TxManager
	logger          *slog.Logger
	deferAfterHooks bool
}

// NewDispatcher creates a dispatcher. Nil arguments select defaults: the
// package-level default registry, a no-op preloader, and a TxManager that
// never reports an open transaction.
func NewDispatcher(registry *Registry, preloader Preloader, tx TxManager) *Dispatcher {
	if registry == nil {
		registry = defaultRegistry
	}
	if preloader == nil {
		preloader = NoopPreloader{}
	}
	if tx == nil {
		tx = NoTx{}
	}
	return &Dispatcher{
		registry:        registry,
		preloader:       preloader,
		tx:              tx,
		logger:          slog.Default(),
		deferAfterHooks: true,
	}
}

// SetDeferAfterHooks controls whether after_* hooks dispatched inside an
// open transaction wait for commit. On by default; turning it off makes
// every hook run inline, regardless of transaction state.
func (d *Dispatcher) SetDeferAfterHooks(deferToCommit bool) {
	d.deferAfterHooks = deferToCommit
}

// SetLogger replaces the structured logger used for hook failure records.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Registry returns the registry this dispatcher reads from.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Handle notifies the engine that a lifecycle event occurred for a batch
// of records. The storage layer calls it once per logical batch
// operation, immediately before and after each mutation.
//
// Handle enqueues the call on the dispatch queue carried in ctx. A nested
// call (a hook that itself triggers a mutation) finds the queue already
// draining, appends, and returns nil: the outermost invocation's drain
// loop processes it after the current entry finishes, strictly FIFO.
// That converts cross-hook recursion into bounded sequential processing
// instead of unbounded call-stack growth.
//
// The first hook error aborts the drain, discards the remaining queue and
// propagates to the caller; the engine never swallows hook errors, since
// before/validate hooks veto mutations precisely by failing.
func (d *Dispatcher) Handle(ctx context.Context, event Event, model any, newRecords, oldRecords []any, extra map[string]any) error {
	if !event.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	typ, err := modelType(model)
	if err != nil {
		return err
	}

	ctx, st := ensureState(ctx)
	st.queue = append(st.queue, queuedDispatch{
		event: event,
		model: typ,
		new:   newRecords,
		old:   oldRecords,
		extra: extra,
	})
	if st.draining {
		return nil
	}

	st.draining = true
	defer func() { st.draining = false }()

	for len(st.queue) > 0 {
		entry := st.queue[0]
		st.queue = st.queue[1:]
		if err := d.process(ctx, entry); err != nil {
			st.queue = nil
			return err
		}
	}
	return nil
}

// process runs one queued dispatch: registry lookup, stable priority
// sort, batch padding, then the invocation loop. The loop runs inline,
// or deferred to commit for after_* events inside an open transaction.
func (d *Dispatcher) process(ctx context.Context, entry queuedDispatch) error {
	regs := d.registry.lookupType(entry.model, entry.event)
	if len(regs) == 0 {
		return nil
	}

	// Stable: equal priorities keep registration order.
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].Priority < regs[j].Priority })

	newLocal, oldLocal := padBatch(entry.new, entry.old)
	if len(newLocal) == 0 {
		return nil
	}

	active := &State{Event: entry.event, Model: entry.model, New: newLocal, Old: oldLocal}

	run := func(ctx context.Context) error {
		ctx, st := ensureState(ctx)
		prev := st.current
		st.depth++
		active.Depth = st.depth
		st.current = active
		defer func() {
			st.current = prev
			st.depth--
		}()

		for _, reg := range regs {
			if len(reg.PreloadFields) > 0 {
				d.preloader.PreloadRelated(ctx, newLocal, reg.PreloadFields)
			}

			if reg.Condition != nil {
				matched := false
				for i := range newLocal {
					if reg.Condition.Check(newLocal[i], oldLocal[i]) {
						matched = true
						break
					}
				}
				if !matched {
					continue
				}
			}

			batch := &Batch{
				Event: entry.event,
				Model: entry.model,
				New:   newLocal,
				Old:   oldLocal,
				Extra: entry.extra,
			}
			if err := reg.Func(ctx, batch); err != nil {
				d.logger.ErrorContext(ctx, "hook failed",
					slog.String("handler", reg.Handler),
					slog.String("method", reg.Method),
					slog.String("event", string(entry.event)),
					slog.String("model", entry.model.Name()),
					slog.Any("error", err),
				)
				return fmt.Errorf("bulkhooks: hook %s.%s on %s %s: %w",
					reg.Handler, reg.Method, entry.model.Name(), entry.event, err)
			}
		}
		return nil
	}

	// after_* hooks inside an open transaction must only observe committed
	// state; the whole invocation loop moves to the commit callback. The
	// closure re-establishes the execution context for its own run, since
	// this one is torn down when process returns.
	if entry.event.IsAfter() && d.deferAfterHooks && d.tx.InAtomicBlock(ctx) {
		d.tx.OnCommit(ctx, run)
		return nil
	}
	return run(ctx)
}

// padBatch equalizes the two record lists by padding the shorter with nil
// absent markers: creates have no old snapshots, deletes may have no new
// state. Both returned slices have the same length.
func padBatch(newRecords, oldRecords []any) ([]any, []any) {
	n := len(newRecords)
	if len(oldRecords) > n {
		n = len(oldRecords)
	}
	paddedNew := make([]any, n)
	copy(paddedNew, newRecords)
	paddedOld := make([]any, n)
	copy(paddedOld, oldRecords)
	return paddedNew, paddedOld
}
