// collaborators.go
package bulkhooks

import "context"

// Preloader warms relation fields on records in place before condition
// evaluation and hook invocation, so hooks over bulk batches do not fall
// back to per-record lazy loading. Implementations must not fail: a
// preload that cannot be satisfied degrades to lazy loading and is at
// most logged.
type Preloader interface {
	PreloadRelated(ctx context.Context, records []any, fields []string)
}

// NoopPreloader leaves records untouched. It is the dispatcher default.
type NoopPreloader struct{}

// PreloadRelated does nothing.
func (NoopPreloader) PreloadRelated(context.Context, []any, []string) {}

// TxManager tells the dispatcher whether the current call is inside an
// open transaction, and schedules deferred work for commit time. Only
// after_* events consult it: their hooks must observe durably committed
// state and must not run at all if the transaction rolls back.
type TxManager interface {
	// InAtomicBlock reports whether ctx is inside an open transaction.
	InAtomicBlock(ctx context.Context) bool

	// OnCommit schedules fn to run when the surrounding transaction
	// commits, on whatever goroutine performs the commit. The context
	// passed to fn at commit time carries no open transaction. An error
	// from fn surfaces to the commit caller; the committed mutation
	// stands regardless.
	OnCommit(ctx context.Context, fn func(ctx context.Context) error)
}

// NoTx is the dispatcher default TxManager: never inside a transaction,
// so every event runs inline.
type NoTx struct{}

// InAtomicBlock always reports false.
func (NoTx) InAtomicBlock(context.Context) bool { return false }

// OnCommit runs fn immediately. The dispatcher only defers when
// InAtomicBlock reports true, so this path is a safety net.
func (NoTx) OnCommit(ctx context.Context, fn func(ctx context.Context) error) {
	_ = fn(ctx)
}
